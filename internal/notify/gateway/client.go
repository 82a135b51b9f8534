// Package gateway is the HTTP client for the external notification provider
// that carries push, SMS, and email traffic.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/interpretly/booking/internal/notify"
	"github.com/interpretly/booking/pkg/models"
)

// Sentinel errors for gateway failures.
var (
	ErrGatewayUnreachable = errors.New("notification gateway unreachable")
	ErrGatewayRejected    = errors.New("notification gateway rejected request")
	ErrGatewayTimeout     = errors.New("notification gateway timeout")
)

// Client implements notify.Sink against the provider gateway's HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient creates a new gateway client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	Recipient string         `json:"recipient"`
	JobID     uuid.UUID      `json:"job_id"`
	Language  string         `json:"language,omitempty"`
	Body      string         `json:"body"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Send delivers one message on one channel. The recipient address depends on
// the channel: device-bound push uses the user id, SMS the phone number, email
// the address.
func (c *Client) Send(ctx context.Context, recipient *models.User, channel string, msg notify.Message) error {
	var addr string
	switch channel {
	case models.ChannelPush:
		addr = recipient.ID.String()
	case models.ChannelSMS:
		addr = recipient.Phone
	case models.ChannelEmail:
		addr = recipient.Email
	default:
		return fmt.Errorf("%w: unknown channel %q", ErrGatewayRejected, channel)
	}
	if addr == "" {
		return fmt.Errorf("%w: no %s address for recipient", notify.ErrNoAddress, channel)
	}

	body, err := json.Marshal(sendRequest{
		Recipient: addr,
		JobID:     msg.JobID,
		Language:  msg.Language,
		Body:      msg.Body,
	})
	if err != nil {
		return fmt.Errorf("encoding send request: %w", err)
	}

	u := fmt.Sprintf("%s/v1/%s", c.baseURL, channel)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}
	return nil
}

// Cancel voids a pending push for a translator. The gateway answers 404 when
// the message was already delivered; that is not a failure worth surfacing.
func (c *Client) Cancel(ctx context.Context, jobID, translatorID uuid.UUID) error {
	u := fmt.Sprintf("%s/v1/push/%s/%s", c.baseURL, jobID, translatorID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}
	return nil
}

// Ready probes the gateway health endpoint.
func (c *Client) Ready(ctx context.Context) error {
	u := c.baseURL + "/v1/ready"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func classifyError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrGatewayTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
}
