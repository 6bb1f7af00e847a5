// Package directory maps operator phone numbers to QTick business ids.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"qtick-agent/internal/domain"
	"qtick-agent/internal/infra/phone"
)

// Seed is the mapping a fresh directory starts with.
func Seed() map[string]int {
	return map[string]int{
		"6592701525":   96,
		"6590306703":   11,
		"919080534415": 11,
	}
}

// FileStore keeps mappings in a JSON object on disk. Writes replace the file
// atomically; a missing or empty file reads as Seed.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger
}

// NewFileStore creates a store backed by path. The file is created lazily on
// the first Register.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Lookup(_ context.Context, number string) (int, error) {
	key := phone.Digits(number)
	s.mu.RLock()
	defer s.mu.RUnlock()

	mappings, err := s.load()
	if err != nil {
		return 0, err
	}
	id, ok := mappings[key]
	if !ok || key == "" {
		return 0, domain.NewDomainError("FileStore.Lookup", domain.ErrPhoneNotMapped, key)
	}
	return id, nil
}

func (s *FileStore) Register(_ context.Context, number string, businessID int) error {
	key := phone.Digits(number)
	if key == "" || businessID <= 0 {
		return domain.NewDomainError("FileStore.Register", domain.ErrInvalidInput, "phone and business_id are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mappings, err := s.load()
	if err != nil {
		return err
	}
	for p, id := range mappings {
		if id == businessID && p != key {
			return domain.NewDomainError("FileStore.Register", domain.ErrBusinessTaken, fmt.Sprintf("business %d belongs to %s", businessID, p))
		}
	}
	if current, ok := mappings[key]; ok && current == businessID {
		return nil
	}
	mappings[key] = businessID
	if err := s.save(mappings); err != nil {
		return err
	}
	s.logger.Info("phone mapping registered", "phone", key, "business_id", businessID)
	return nil
}

// load reads the mapping file. Callers hold s.mu.
func (s *FileStore) load() (map[string]int, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Seed(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read phone mappings: %w", err)
	}

	var mappings map[string]int
	if err := json.Unmarshal(data, &mappings); err != nil {
		s.logger.Warn("phone mappings unreadable, using seed", "path", s.path, "error", err)
		return Seed(), nil
	}
	if len(mappings) == 0 {
		return Seed(), nil
	}
	return maps.Clone(mappings), nil
}

// save writes the mappings atomically (temp file + rename).
func (s *FileStore) save(mappings map[string]int) error {
	data, err := json.MarshalIndent(mappings, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal phone mappings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create mappings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "phone_mappings-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename phone mappings: %w", err)
	}
	return nil
}
