package notifications

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"go.uber.org/zap"
)

// Publisher fans events out to live subscribers
type Publisher interface {
	Publish(event Event)
}

// Service routes domain events to live subscribers and to farmers by email or SMS
type Service struct {
	notifier  Notifier
	publisher Publisher
	logger    *zap.Logger
}

// NewService creates a notification service. A nil publisher disables live events.
func NewService(notifier Notifier, publisher Publisher, logger *zap.Logger) *Service {
	return &Service{notifier: notifier, publisher: publisher, logger: logger}
}

// Publish broadcasts an event to live subscribers
func (s *Service) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// SubmissionReviewed publishes the review event and notifies the farmer by
// email or SMS depending on their contact. Delivery failures are logged and
// do not fail the review.
func (s *Service) SubmissionReviewed(ctx context.Context, event Event, recipient Recipient) {
	event.Type = EventSubmissionReviewed
	s.Publish(event)

	msg := reviewMessage(event, recipient)
	if address, err := mail.ParseAddress(recipient.Contact); err == nil {
		msg.Channel = ChannelEmail
		msg.To = address.Address
	} else if number, ok := phoneNumber(recipient.Contact); ok {
		msg = reviewText(event, recipient)
		msg.To = number
	} else {
		s.logger.Debug("Farmer has no usable contact, skipping notification",
			zap.String("farmer_id", event.FarmerID.String()))
		return
	}

	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn("Failed to notify farmer",
			zap.String("submission_id", event.SubmissionID.String()),
			zap.String("channel", msg.Channel),
			zap.Error(err))
	}
}

func reviewMessage(event Event, recipient Recipient) Message {
	if recipient.Language == "hi" {
		return Message{
			Subject: fmt.Sprintf("आपका कार्बन क्रेडिट आवेदन: %s", statusLabelHindi(event.Status)),
			Body: fmt.Sprintf("नमस्ते %s,\n\nखेत %q के लिए आपका आवेदन %s किया गया है।\nकार्बन क्रेडिट: %.2f tCO2e\n%s",
				recipient.Name, event.FarmName, statusLabelHindi(event.Status), event.Credits, notesLine(event.Notes)),
		}
	}
	return Message{
		Subject: fmt.Sprintf("Your carbon credit submission was %s", event.Status),
		Body: fmt.Sprintf("Hello %s,\n\nYour submission for farm %q was %s.\nCarbon credits: %.2f tCO2e\n%s",
			recipient.Name, event.FarmName, event.Status, event.Credits, notesLine(event.Notes)),
	}
}

func reviewText(event Event, recipient Recipient) Message {
	if recipient.Language == "hi" {
		return Message{
			Channel: ChannelSMS,
			Body: fmt.Sprintf("%s, खेत %q के लिए आपका आवेदन %s किया गया। कार्बन क्रेडिट: %.2f tCO2e",
				recipient.Name, event.FarmName, statusLabelHindi(event.Status), event.Credits),
		}
	}
	return Message{
		Channel: ChannelSMS,
		Body: fmt.Sprintf("%s, your submission for farm %q was %s. Carbon credits: %.2f tCO2e",
			recipient.Name, event.FarmName, event.Status, event.Credits),
	}
}

func statusLabelHindi(status string) string {
	switch status {
	case "verified":
		return "सत्यापित"
	case "rejected":
		return "अस्वीकृत"
	}
	return status
}

func notesLine(notes string) string {
	if notes == "" {
		return ""
	}
	return "\n" + notes + "\n"
}
