package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/ports"
)

// Delivered is a code captured by the DevInbox.
type Delivered struct {
	ChallengeID string    `json:"challenge_id"`
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DevInbox keeps the last code sent to each principal so it can be read back
// in local development and tests. Never enable it in production.
type DevInbox struct {
	mu     sync.RWMutex
	codes  map[string]Delivered
	logger watermill.LoggerAdapter
}

var _ ports.ChallengeDeliverer = (*DevInbox)(nil)

// NewDevInbox creates an empty inbox. logger may be nil.
func NewDevInbox(logger watermill.LoggerAdapter) *DevInbox {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &DevInbox{codes: make(map[string]Delivered), logger: logger}
}

// Deliver stores code as the principal's latest
func (d *DevInbox) Deliver(_ context.Context, p *core.Principal, c *core.Challenge, code string) error {
	d.mu.Lock()
	d.codes[p.ID] = Delivered{ChallengeID: c.ID, Code: code, ExpiresAt: c.ExpiresAt}
	d.mu.Unlock()

	d.logger.Debug("Dev delivery", watermill.LogFields{
		"principal_id": p.ID,
		"challenge_id": c.ID,
	})
	return nil
}

// Latest returns the last code delivered to principalID.
func (d *DevInbox) Latest(principalID string) (Delivered, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.codes[principalID]
	return v, ok
}
