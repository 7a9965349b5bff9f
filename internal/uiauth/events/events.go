// Package events publishes account side effects to a watermill publisher.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// TopicPasswordChanged carries PasswordChanged events.
const TopicPasswordChanged = "uiauth.password_changed"

// PasswordChanged is published after a user's password was replaced and
// their access tokens were revoked. Consumers remove push registrations and
// drop cached state for the user.
type PasswordChanged struct {
	UserID        string    `json:"user_id"`
	TokensRevoked int64     `json:"tokens_revoked"`
	ChangedAt     time.Time `json:"changed_at"`
}

type Publisher struct {
	publisher message.Publisher
}

func NewPublisher(publisher message.Publisher) *Publisher {
	return &Publisher{publisher: publisher}
}

func (p *Publisher) PublishPasswordChanged(ctx context.Context, ev PasswordChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(TopicPasswordChanged, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// DecodePasswordChanged parses a message published by PublishPasswordChanged.
func DecodePasswordChanged(msg *message.Message) (PasswordChanged, error) {
	var ev PasswordChanged
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return PasswordChanged{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return ev, nil
}
