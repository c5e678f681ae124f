// Package gateway implements the client and webhook payload types for the
// WhatsApp messaging gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"leadbot_backend/platform/apperr"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/httpkit"
	"leadbot_backend/platform/logger"

	"golang.org/x/time/rate"
)

// Client talks to the gateway REST API. Sends are rate limited per instance
// so one busy campaign cannot trip the gateway's flood protection for every
// outbound identity at once.
type Client struct {
	baseURL   string
	apiKey    string
	textHTTP  *http.Client
	mediaHTTP *http.Client
	log       *logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	sendRate rate.Limit
}

// NewClient creates a gateway client.
func NewClient(cfg config.GatewayConfig, log *logger.Logger) *Client {
	transport := httpkit.NewRetryTransport(nil)
	return &Client{
		baseURL:   strings.TrimRight(cfg.GetGatewayBaseURL(), "/"),
		apiKey:    cfg.GetGatewayAPIKey(),
		textHTTP:  &http.Client{Timeout: 30 * time.Second, Transport: transport},
		mediaHTTP: &http.Client{Timeout: 60 * time.Second, Transport: transport},
		log:       log,
		limiters:  make(map[string]*rate.Limiter),
		sendRate:  rate.Limit(cfg.GetGatewaySendRate()),
	}
}

func (c *Client) limiter(instance string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[instance]
	if !ok {
		l = rate.NewLimiter(c.sendRate, 1)
		c.limiters[instance] = l
	}
	return l
}

// SendText sends a plain text message through the given instance and returns
// the gateway message id.
func (c *Client) SendText(ctx context.Context, number, text, instance string) (string, error) {
	if err := c.limiter(instance).Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"number": strings.TrimPrefix(number, "+"),
		"text":   text,
	}
	return c.send(ctx, c.textHTTP, "/message/sendText/"+instance, payload)
}

// SendMedia sends a base64-encoded document with a caption and returns the
// gateway message id.
func (c *Client) SendMedia(ctx context.Context, number, instance, fileBase64, filename, caption string) (string, error) {
	if err := c.limiter(instance).Wait(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"number":    strings.TrimPrefix(number, "+"),
		"mediatype": "document",
		"media":     fileBase64,
		"fileName":  filename,
		"caption":   caption,
	}
	return c.send(ctx, c.mediaHTTP, "/message/sendMedia/"+instance, payload)
}

// FetchMediaBase64 downloads the media content of a received message as
// base64.
func (c *Client) FetchMediaBase64(ctx context.Context, instance, messageID, remoteJID string, fromMe bool) (string, error) {
	payload := map[string]any{
		"message": map[string]any{
			"key": map[string]any{
				"id":        messageID,
				"remoteJid": remoteJID,
				"fromMe":    fromMe,
			},
		},
		"convertToMp4": false,
	}

	body, err := c.post(ctx, c.mediaHTTP, "/chat/getBase64FromMediaMessage/"+instance, payload)
	if err != nil {
		return "", err
	}

	var out struct {
		Base64 string `json:"base64"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", apperr.Remote("decode media response", err)
	}
	if out.Base64 == "" {
		return "", apperr.NotFound("media content not available")
	}
	return out.Base64, nil
}

// FetchPairingCode retrieves the connection QR payload for an instance.
func (c *Client) FetchPairingCode(ctx context.Context, instance string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/instance/connect/"+instance, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.textHTTP.Do(req)
	if err != nil {
		return "", apperr.Remote("gateway request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", c.statusError(resp)
	}

	var out struct {
		Code        string `json:"code"`
		PairingCode string `json:"pairingCode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperr.Remote("decode pairing response", err)
	}
	if out.Code != "" {
		return out.Code, nil
	}
	if out.PairingCode != "" {
		return out.PairingCode, nil
	}
	return "", apperr.NotFound("instance has no pending pairing code")
}

func (c *Client) send(ctx context.Context, client *http.Client, path string, payload any) (string, error) {
	body, err := c.post(ctx, client, path, payload)
	if err != nil {
		return "", err
	}

	var out struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", apperr.Remote("decode send response", err)
	}
	if out.Key.ID == "" {
		return "", apperr.Remote("gateway returned no message id", nil)
	}
	return out.Key.ID, nil
}

func (c *Client) post(ctx context.Context, client *http.Client, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.Remote("gateway request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.statusError(resp)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return apperr.Remote(
		fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
}
