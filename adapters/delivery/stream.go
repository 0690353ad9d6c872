package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/ports"
)

// StreamTopicSuffix is appended to the events prefix to name the delivery topic.
const StreamTopicSuffix = ".challenge.delivery"

// DeliveryRequest is the message a downstream notifier consumes.
type DeliveryRequest struct {
	ChallengeID string    `json:"challenge_id"`
	PrincipalID string    `json:"principal_id"`
	Phone       string    `json:"phone"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// StreamDeliverer hands codes to a separate notifier over a message stream.
type StreamDeliverer struct {
	publisher message.Publisher
	topic     string
}

var _ ports.ChallengeDeliverer = (*StreamDeliverer)(nil)

// NewStreamDeliverer publishes delivery requests to prefix + StreamTopicSuffix.
func NewStreamDeliverer(publisher message.Publisher, prefix string) *StreamDeliverer {
	return &StreamDeliverer{publisher: publisher, topic: prefix + StreamTopicSuffix}
}

// Topic returns the topic delivery requests are published to.
func (d *StreamDeliverer) Topic() string {
	return d.topic
}

// Deliver publishes one delivery request keyed by the challenge id
func (d *StreamDeliverer) Deliver(ctx context.Context, p *core.Principal, c *core.Challenge, code string) error {
	if p.Phone == "" {
		return ErrNoPhone
	}
	payload, err := json.Marshal(DeliveryRequest{
		ChallengeID: c.ID,
		PrincipalID: p.ID,
		Phone:       p.Phone,
		Code:        code,
		ExpiresAt:   c.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal delivery request: %w", err)
	}

	msg := message.NewMessage(c.ID, payload)
	msg.SetContext(ctx)
	if err := d.publisher.Publish(d.topic, msg); err != nil {
		return fmt.Errorf("failed to publish delivery request: %w", err)
	}
	return nil
}
