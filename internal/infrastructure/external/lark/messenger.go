package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
)

const receiveIDTypeOpenID = "open_id"

// MessageCreator is the IM call the messenger needs from the SDK
type MessageCreator interface {
	Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error)
}

// Messenger delivers notifications as Lark chat messages. It implements
// port.NotificationChannel.
type Messenger struct {
	messages MessageCreator
	baseURL  string
	logger   *zap.Logger
}

// NewMessenger creates a Lark chat channel. baseURL prefixes relative links.
func NewMessenger(sdk *SDKClient, baseURL string, logger *zap.Logger) *Messenger {
	return NewMessengerWithCreator(sdk.GetClient().Im.Message, baseURL, logger)
}

// NewMessengerWithCreator creates a messenger over any message creator
func NewMessengerWithCreator(messages MessageCreator, baseURL string, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: messages,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		logger:   logger,
	}
}

// Name implements port.NotificationChannel
func (m *Messenger) Name() string { return "lark" }

// Deliver sends the notification to the recipient's Lark account. Profiles
// without a Lark ID are skipped.
func (m *Messenger) Deliver(ctx context.Context, d port.Delivery) error {
	if d.LarkID == "" {
		return nil
	}

	_, err := m.SendMessage(ctx, d.LarkID, m.render(d))
	return err
}

// SendMessage sends a text message to a user by open_id
func (m *Messenger) SendMessage(ctx context.Context, openID, text string) (string, error) {
	if openID == "" {
		return "", fmt.Errorf("openID cannot be empty")
	}
	if text == "" {
		return "", fmt.Errorf("content cannot be empty")
	}

	body, err := buildMessageBody(openID, text)
	if err != nil {
		return "", err
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeOpenID).
		Body(body).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", openID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", openID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Debug("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", openID))

	return messageID, nil
}

// buildMessageBody wraps text as a Lark text message addressed to openID
func buildMessageBody(openID, text string) (*larkIm.CreateMessageReqBody, error) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message content: %w", err)
	}
	return larkIm.NewCreateMessageReqBodyBuilder().
		ReceiveId(openID).
		MsgType("text").
		Content(string(content)).
		Build(), nil
}

func (m *Messenger) render(d port.Delivery) string {
	var b strings.Builder
	if d.Title != "" {
		b.WriteString(d.Title)
		b.WriteString("\n")
	}
	b.WriteString(d.Message)
	if d.Link != "" {
		b.WriteString("\n")
		if strings.HasPrefix(d.Link, "/") {
			b.WriteString(m.baseURL)
		}
		b.WriteString(d.Link)
	}
	return b.String()
}

var _ port.NotificationChannel = (*Messenger)(nil)
