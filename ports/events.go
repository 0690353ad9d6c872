package ports

import (
	"context"

	"github.com/layer-3/agriauth/core"
)

// EventPublisher publishes domain events to notify other services
type EventPublisher interface {
	Publish(ctx context.Context, event core.Event) error
}

// ChallengeDeliverer hands a freshly issued code to the principal (SMS, push, ...).
type ChallengeDeliverer interface {
	Deliver(ctx context.Context, principal *core.Principal, challenge *core.Challenge, code string) error
}
