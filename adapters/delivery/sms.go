package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/agriauth/core"
	"github.com/layer-3/agriauth/ports"
)

const (
	DefaultSMSBaseURL = "https://www.smslocal.com/dev/bulkV2"
	smsTimeout        = 15 * time.Second
)

var ErrNoPhone = errors.New("principal has no phone number")

// SMSDeliverer sends challenge codes through the SMS Local OTP route.
type SMSDeliverer struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

var _ ports.ChallengeDeliverer = (*SMSDeliverer)(nil)

// NewSMSDeliverer returns a deliverer for the given API key. baseURL and
// sender are optional.
func NewSMSDeliverer(apiKey, baseURL, sender string) *SMSDeliverer {
	if baseURL == "" {
		baseURL = DefaultSMSBaseURL
	}
	return &SMSDeliverer{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: smsTimeout},
	}
}

// Deliver texts code to the principal's phone. The code is never logged.
func (d *SMSDeliverer) Deliver(ctx context.Context, p *core.Principal, _ *core.Challenge, code string) error {
	if d.APIKey == "" {
		return fmt.Errorf("sms: API key not configured")
	}
	if p.Phone == "" {
		return ErrNoPhone
	}

	body := map[string]interface{}{
		"route":     "otp",
		"numbers":   strings.TrimPrefix(p.Phone, "+"),
		"variables": code,
	}
	if d.Sender != "" {
		body["sender_id"] = d.Sender
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", d.APIKey)

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
