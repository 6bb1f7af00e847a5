package domain

import "context"

// InboundMessage is a message received from a messaging channel.
type InboundMessage struct {
	ChannelName string
	MessageID   string
	SenderID    string // the sender's phone number for WhatsApp
	SenderName  string
	Content     string
}

// OutboundMessage is a reply sent through a messaging channel.
type OutboundMessage struct {
	RecipientID string
	Content     string
	ReplyToID   string
	IsError     bool
}

// MessageHandler is a callback the channel invokes when it receives input.
type MessageHandler func(ctx context.Context, msg InboundMessage) error

// Channel is the interface for messaging adapters.
type Channel interface {
	Start(ctx context.Context, handler MessageHandler) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) error
	Name() string
}
