// Package crm implements the REST client for the CRM collaborator: lead and
// contact lookup, pipeline stage updates, and note creation.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"leadbot_backend/platform/apperr"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/httpkit"
	"leadbot_backend/platform/logger"
)

// CustomFieldValue is one value of a CRM custom field.
type CustomFieldValue struct {
	Value any `json:"value"`
}

// CustomField is a CRM custom field with its values.
type CustomField struct {
	FieldID   int64              `json:"field_id"`
	FieldCode string             `json:"field_code"`
	FieldName string             `json:"field_name"`
	Values    []CustomFieldValue `json:"values"`
}

// EmbeddedContact is a contact reference embedded in a lead.
type EmbeddedContact struct {
	ID     int64 `json:"id"`
	IsMain bool  `json:"is_main"`
}

// Lead is a CRM lead with its embedded contact references.
type Lead struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	ResponsibleUserID int64         `json:"responsible_user_id"`
	StatusID          int64         `json:"status_id"`
	PipelineID        int64         `json:"pipeline_id"`
	CustomFields      []CustomField `json:"custom_fields_values"`
	Embedded          struct {
		Contacts []EmbeddedContact `json:"contacts"`
	} `json:"_embedded"`
}

// Contact is a CRM contact.
type Contact struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	CustomFields []CustomField `json:"custom_fields_values"`
}

// MainContactID returns the id of the lead's main contact, falling back to
// the first embedded contact. Zero means the lead has no contacts.
func (l *Lead) MainContactID() int64 {
	for _, c := range l.Embedded.Contacts {
		if c.IsMain {
			return c.ID
		}
	}
	if len(l.Embedded.Contacts) > 0 {
		return l.Embedded.Contacts[0].ID
	}
	return 0
}

// CustomFieldText returns the first string value of the custom field with
// the given code or name, or "".
func CustomFieldText(fields []CustomField, codeOrName string) string {
	for _, f := range fields {
		if !strings.EqualFold(f.FieldCode, codeOrName) && !strings.EqualFold(f.FieldName, codeOrName) {
			continue
		}
		for _, v := range f.Values {
			if s, ok := v.Value.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// PhoneNumbers returns the raw values of the contact's PHONE custom field.
func (c *Contact) PhoneNumbers() []string {
	var numbers []string
	for _, f := range c.CustomFields {
		if !strings.EqualFold(f.FieldCode, "PHONE") {
			continue
		}
		for _, v := range f.Values {
			if s, ok := v.Value.(string); ok && s != "" {
				numbers = append(numbers, s)
			}
		}
	}
	return numbers
}

// Client talks to the CRM REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

// NewClient creates a CRM client with bearer auth and transient-status retry.
func NewClient(cfg config.CRMConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.GetCRMBaseURL(), "/"),
		token:   cfg.GetCRMAccessToken(),
		http: &http.Client{
			Timeout:   20 * time.Second,
			Transport: httpkit.NewRetryTransport(nil),
		},
		log: log,
	}
}

// GetLead fetches a lead with its embedded contacts.
func (c *Client) GetLead(ctx context.Context, id int64) (*Lead, error) {
	var lead Lead
	path := fmt.Sprintf("/api/v4/leads/%d?with=contacts", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetContact fetches a contact.
func (c *Client) GetContact(ctx context.Context, id int64) (*Contact, error) {
	var contact Contact
	path := fmt.Sprintf("/api/v4/contacts/%d", id)
	if err := c.do(ctx, http.MethodGet, path, nil, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// UpdateLeadStage moves a lead to the given pipeline stage.
func (c *Client) UpdateLeadStage(ctx context.Context, id, stageID int64) error {
	payload := map[string]int64{"status_id": stageID}
	path := fmt.Sprintf("/api/v4/leads/%d", id)
	return c.do(ctx, http.MethodPatch, path, payload, nil)
}

// CreateNote attaches a common text note to a lead.
func (c *Client) CreateNote(ctx context.Context, leadID int64, text string) error {
	payload := []map[string]any{{
		"note_type": "common",
		"params":    map[string]string{"text": text},
	}}
	path := fmt.Sprintf("/api/v4/leads/%d/notes", leadID)
	return c.do(ctx, http.MethodPost, path, payload, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal crm payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Remote("crm request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return apperr.NotFound("crm resource not found").WithOp(method + " " + path)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return apperr.Remote(
			fmt.Sprintf("crm returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return apperr.Remote("decode crm response", err)
		}
	}
	return nil
}
