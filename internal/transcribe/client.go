// Package transcribe implements the audio transcription collaborator: an
// OpenAI-compatible audio/transcriptions endpoint receiving the decoded
// voice note and returning plain text.
package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"leadbot_backend/platform/apperr"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/httpkit"
	"leadbot_backend/platform/logger"
)

// Client uploads audio for transcription.
type Client struct {
	url     string
	apiKey  string
	model   string
	enabled bool
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a transcription client. When no API key is configured
// the client reports itself disabled and Transcribe returns NotFound.
func NewClient(cfg config.TranscribeConfig, log *logger.Logger) *Client {
	return &Client{
		url:     cfg.GetTranscribeAPIURL(),
		apiKey:  cfg.GetTranscribeAPIKey(),
		model:   cfg.GetTranscribeModel(),
		enabled: cfg.IsTranscribeEnabled(),
		http: &http.Client{
			Timeout:   60 * time.Second,
			Transport: httpkit.NewRetryTransport(nil),
		},
		log: log,
	}
}

// Enabled reports whether transcription is configured.
func (c *Client) Enabled() bool { return c.enabled }

// Transcribe decodes the base64 audio and returns its transcription text.
func (c *Client) Transcribe(ctx context.Context, audioBase64 string) (string, error) {
	if !c.enabled {
		return "", apperr.NotFound("transcription not configured")
	}

	audio, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return "", fmt.Errorf("decode audio: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.ogg")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := writer.WriteField("model", c.model); err != nil {
		return "", err
	}
	if err := writer.WriteField("response_format", "text"); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Remote("transcription request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", apperr.Remote(
			fmt.Sprintf("transcription returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(text)), nil
}
