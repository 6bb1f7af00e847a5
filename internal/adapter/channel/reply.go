package channel

import (
	"context"
	"errors"
	"log/slog"

	"qtick-agent/internal/domain"
)

// Replies for messages the phone entry point could not run.
const (
	notRegisteredText = "This number is not registered with QTick. Please ask your administrator to link it to your business."
	failureText       = "Sorry, something went wrong while handling your message. Please try again."
)

// PhoneReplies returns a handler that runs each inbound message through the
// phone entry point under the sender's number and sends the envelope's
// WhatsApp text back on out.
func PhoneReplies(phones PhoneService, out domain.Channel, logger *slog.Logger) domain.MessageHandler {
	return func(ctx context.Context, msg domain.InboundMessage) error {
		reply := domain.OutboundMessage{RecipientID: msg.SenderID, ReplyToID: msg.MessageID}

		resp, err := phones.Process(ctx, msg.SenderID, msg.Content)
		switch {
		case err == nil:
			reply.Content = resp.WhatsAppText
		case errors.Is(err, domain.ErrPhoneNotMapped):
			logger.Info("message from unmapped sender", "channel", msg.ChannelName, "from", msg.SenderID)
			reply.Content = notRegisteredText
		default:
			logger.Error("phone chat failed", "channel", msg.ChannelName, "from", msg.SenderID, "error", err)
			reply.Content = failureText
			reply.IsError = true
		}
		return out.Send(ctx, reply)
	}
}
