package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"winterops_backend/platform/config"
	"winterops_backend/platform/logger"
	"winterops_backend/platform/phone"
)

// Gateway sends outbound SMS through the Twilio REST API. A nil gateway is
// a logging no-op, which keeps development environments working without
// provider credentials.
type Gateway struct {
	accountSID string
	authToken  string
	from       string
	region     string
	baseURL    string
	http       *http.Client
	log        *logger.Logger
}

// NewGateway creates the outbound SMS client, or nil when the provider is
// not configured.
func NewGateway(cfg config.SMSConfig, log *logger.Logger) *Gateway {
	if !cfg.IsSMSEnabled() {
		log.Warn("sms gateway not configured; outbound messages will be dropped")
		return nil
	}

	return &Gateway{
		accountSID: cfg.GetTwilioAccountSID(),
		authToken:  cfg.GetTwilioAuthToken(),
		from:       cfg.GetTwilioFromNumber(),
		region:     cfg.GetDefaultRegion(),
		baseURL:    "https://api.twilio.com",
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type twilioMessageResponse struct {
	SID string `json:"sid"`
}

// Send delivers one message and returns the provider's message SID.
func (g *Gateway) Send(ctx context.Context, to, body string) (string, error) {
	if g == nil {
		return "", nil
	}

	normalized := phone.NormalizeE164Region(to, g.region)

	form := url.Values{
		"To":   {normalized},
		"From": {g.from},
		"Body": {body},
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", g.baseURL, g.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(g.accountSID, g.authToken)

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result twilioMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode sms provider response: %w", err)
	}

	g.log.Info("sms sent", "to", normalized, "sid", result.SID)
	return result.SID, nil
}
