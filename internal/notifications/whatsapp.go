package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tradebridge-io/tradebridge-backend/pkg/config"
)

// WhatsAppClient posts outbound messages to the WhatsApp gateway. Delivery is
// best effort; in-app notifications are the system of record.
type WhatsAppClient struct {
	cfg    config.WhatsAppConfig
	client *http.Client
}

func NewWhatsAppClient(cfg config.WhatsAppConfig) *WhatsAppClient {
	return &WhatsAppClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Enabled reports whether the gateway is configured.
func (w *WhatsAppClient) Enabled() bool {
	return w != nil && w.cfg.Enabled()
}

type whatsAppRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type whatsAppResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Send delivers one message. The gateway answers 200 with success=false on
// recipient-level failures, so both the HTTP status and the body are checked.
func (w *WhatsAppClient) Send(ctx context.Context, to, message string) error {
	if !w.Enabled() {
		return fmt.Errorf("whatsapp gateway not configured")
	}

	body, err := json.Marshal(whatsAppRequest{To: to, Message: message})
	if err != nil {
		return fmt.Errorf("encoding whatsapp request: %w", err)
	}

	url := strings.TrimRight(w.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.cfg.APIKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling whatsapp gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("whatsapp gateway returned status %d", resp.StatusCode)
	}

	var parsed whatsAppResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decoding whatsapp response: %w", err)
	}
	if !parsed.Success {
		return fmt.Errorf("whatsapp delivery failed: %s", parsed.Error)
	}
	return nil
}
