package awssvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
)

// SNSPublisher is the SNS call used for push delivery
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPushSender implements port.PushSender. Endpoints that are SNS platform
// endpoint ARNs are targeted directly; browser endpoints are published to
// the relay topic with their keys as message attributes.
type SNSPushSender struct {
	client     SNSPublisher
	relayTopic string
	logger     *zap.Logger
}

// NewSNSPushSender creates a push sender
func NewSNSPushSender(client SNSPublisher, relayTopicARN string, logger *zap.Logger) *SNSPushSender {
	return &SNSPushSender{client: client, relayTopic: relayTopicARN, logger: logger}
}

// pushPayload is the JSON body the device receives
type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Send implements port.PushSender
func (s *SNSPushSender) Send(ctx context.Context, sub *entity.PushSubscription, msg port.PushMessage) error {
	body, err := json.Marshal(pushPayload{Title: msg.Title, Body: msg.Body, URL: msg.URL, Tag: msg.Tag})
	if err != nil {
		return fmt.Errorf("failed to marshal push payload: %w", err)
	}

	input := &sns.PublishInput{Message: aws.String(string(body))}
	if strings.HasPrefix(sub.Endpoint, "arn:") {
		input.TargetArn = aws.String(sub.Endpoint)
	} else {
		if s.relayTopic == "" {
			return fmt.Errorf("no relay topic configured for web push endpoint")
		}
		input.TopicArn = aws.String(s.relayTopic)
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			"endpoint": stringAttr(sub.Endpoint),
			"p256dh":   stringAttr(sub.P256dh),
			"auth":     stringAttr(sub.Auth),
			"user_id":  stringAttr(sub.UserID),
		}
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		s.logger.Error("Failed to publish push message",
			zap.String("user_id", sub.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to publish push: %w", err)
	}

	s.logger.Debug("Push message published",
		zap.String("user_id", sub.UserID),
		zap.String("message_id", aws.ToString(out.MessageId)))
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}

var _ port.PushSender = (*SNSPushSender)(nil)
