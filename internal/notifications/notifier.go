package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("notification has no recipient")

// Notifier delivers messages to people
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// SESAPI is the subset of the SES v2 client used for email delivery
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier sends email through Amazon SES
type SESNotifier struct {
	client SESAPI
	from   string
	logger *zap.Logger
}

// NewSESNotifier creates an email notifier sending from the given address
func NewSESNotifier(client SESAPI, from string, logger *zap.Logger) *SESNotifier {
	return &SESNotifier{client: client, from: from, logger: logger}
}

func (n *SESNotifier) Notify(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}

	out, err := n.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	n.logger.Debug("Email sent", zap.String("to", msg.To), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// SNSAPI is the subset of the SNS client used for SMS delivery
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier sends text messages through Amazon SNS
type SNSNotifier struct {
	client      SNSAPI
	countryCode string
	logger      *zap.Logger
}

// NewSNSNotifier creates an SMS notifier. Numbers without a leading + are
// prefixed with countryCode.
func NewSNSNotifier(client SNSAPI, countryCode string, logger *zap.Logger) *SNSNotifier {
	return &SNSNotifier{client: client, countryCode: countryCode, logger: logger}
}

func (n *SNSNotifier) Notify(ctx context.Context, msg Message) error {
	number, ok := e164(msg.To, n.countryCode)
	if !ok {
		return ErrNoRecipient
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(number),
		Message:     aws.String(msg.Body),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}

	n.logger.Debug("SMS sent", zap.String("to", number), zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

// MultiNotifier dispatches each message to the notifier for its channel
type MultiNotifier struct {
	Email Notifier
	SMS   Notifier
}

func (n *MultiNotifier) Notify(ctx context.Context, msg Message) error {
	target := n.Email
	if msg.Channel == ChannelSMS {
		target = n.SMS
	}
	if target == nil {
		return fmt.Errorf("no notifier for channel %q", msg.Channel)
	}
	return target.Notify(ctx, msg)
}

// phoneNumber strips separators from contact and reports whether what is
// left is a plausible phone number: an optional + followed by 7 to 15 digits.
func phoneNumber(contact string) (string, bool) {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(contact))

	digits := strings.TrimPrefix(stripped, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return stripped, true
}

func e164(contact, countryCode string) (string, bool) {
	number, ok := phoneNumber(contact)
	if !ok {
		return "", false
	}
	switch {
	case strings.HasPrefix(number, "+"):
		return number, true
	case strings.HasPrefix(number, "00"):
		return "+" + number[2:], true
	}
	if countryCode == "" {
		return "", false
	}
	return "+" + strings.TrimPrefix(countryCode, "+") + strings.TrimLeft(number, "0"), true
}

// LogNotifier writes messages to the log instead of delivering them
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) error {
	n.logger.Info("Notification",
		zap.String("channel", msg.Channel),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}
