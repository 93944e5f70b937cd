package awssvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
)

// SESSender is the SES call used for email delivery
type SESSender interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailChannel implements port.NotificationChannel over SES
type EmailChannel struct {
	client  SESSender
	from    string
	baseURL string
	logger  *zap.Logger
}

// NewEmailChannel creates an SES email channel. baseURL prefixes relative links.
func NewEmailChannel(client SESSender, from, baseURL string, logger *zap.Logger) *EmailChannel {
	return &EmailChannel{
		client:  client,
		from:    from,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Name implements port.NotificationChannel
func (c *EmailChannel) Name() string { return "email" }

// Deliver emails the notification. Profiles without an address are skipped.
func (c *EmailChannel) Deliver(ctx context.Context, d port.Delivery) error {
	if d.Email == "" {
		return nil
	}

	body := d.Message
	if d.Link != "" {
		link := d.Link
		if strings.HasPrefix(link, "/") {
			link = c.baseURL + link
		}
		body += "\n\n" + link
	}

	out, err := c.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination:      &types.Destination{ToAddresses: []string{d.Email}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(d.Title), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		c.logger.Error("Failed to send email",
			zap.String("user_id", d.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	c.logger.Debug("Email sent",
		zap.String("user_id", d.UserID),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

var _ port.NotificationChannel = (*EmailChannel)(nil)
