package repository

import (
	"context"
	"errors"

	"leadbot_backend/platform/phone"

	"github.com/jackc/pgx/v5"
)

// Conversation is the resolved state behind an inbound sender number: the
// lead, the matched contact number, and the ordered message history.
// AgentName is the responsible agent's display name, empty when the lead
// has no agent assigned.
type Conversation struct {
	Lead      Lead
	Number    ContactNumber
	AgentName string
	History   []Message
}

// FindConversationByNumber resolves an inbound sender to its conversation.
// The raw digits are matched in normalized "+digits" form and, for Brazilian
// numbers stored without the mobile ninth digit, the alternate form as well.
func (r *Repository) FindConversationByNumber(ctx context.Context, rawNumber string) (*Conversation, error) {
	normalized := phone.Normalize(rawNumber)
	if normalized == "" {
		return nil, ErrNotFound
	}

	candidates := []string{normalized}
	if variant := phone.NinthDigitVariant(normalized); variant != "" {
		candidates = append(candidates, variant)
	}

	var conv Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT n.id, n.lead_id, n.number, n.status, n.created_at,
		       l.id, l.crm_lead_id, COALESCE(l.crm_contact_id, 0), COALESCE(l.agent_id, 0), l.contact_name, l.status, l.created_at,
		       COALESCE(a.name, '')
		FROM contact_numbers n
		JOIN leads l ON l.id = n.lead_id
		LEFT JOIN agents a ON a.id = l.agent_id
		WHERE n.number = ANY($1)
		ORDER BY n.updated_at DESC
		LIMIT 1
	`, candidates).Scan(
		&conv.Number.ID, &conv.Number.LeadID, &conv.Number.Number, &conv.Number.Status, &conv.Number.CreatedAt,
		&conv.Lead.ID, &conv.Lead.CRMLeadID, &conv.Lead.CRMContactID, &conv.Lead.AgentID,
		&conv.Lead.ContactName, &conv.Lead.Status, &conv.Lead.CreatedAt,
		&conv.AgentName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	history, err := r.listMessages(ctx, conv.Number.ID)
	if err != nil {
		return nil, err
	}
	conv.History = history
	return &conv, nil
}

func (r *Repository) listMessages(ctx context.Context, numberID int64) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, number_id, sender, content, sent_at
		FROM messages
		WHERE number_id = $1
		ORDER BY sent_at ASC, id ASC
	`, numberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.NumberID, &msg.Sender, &msg.Content, &msg.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return messages, nil
}

// LogInitialContact records the opening agent message and flips the used
// number to awaiting-reply in one transaction.
func (r *Repository) LogInitialContact(ctx context.Context, numberID int64, content string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO messages (number_id, sender, content) VALUES ($1, 'agent', $2)
		`, numberID, content); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE contact_numbers SET status = 'awaiting_reply', updated_at = now() WHERE id = $1
		`, numberID)
		return err
	})
}

// SaveUserMessage appends an inbound message and, when the number was
// awaiting its first reply, moves it to in-progress.
func (r *Repository) SaveUserMessage(ctx context.Context, numberID int64, content string) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO messages (number_id, sender, content) VALUES ($1, 'user', $2)
		`, numberID, content); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			UPDATE contact_numbers SET status = 'in_progress', updated_at = now()
			WHERE id = $1 AND status = 'awaiting_reply'
		`, numberID)
		return err
	})
}

// SaveAgentMessage appends an outbound message to the conversation.
func (r *Repository) SaveAgentMessage(ctx context.Context, numberID int64, content string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (number_id, sender, content) VALUES ($1, 'agent', $2)
	`, numberID, content)
	return err
}

// UpdateNumberStatus sets a contact number's status.
func (r *Repository) UpdateNumberStatus(ctx context.Context, numberID int64, status NumberStatus) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE contact_numbers SET status = $2, updated_at = now() WHERE id = $1
	`, numberID, string(status))
	return err
}

// ResetAllConversations wipes all conversation state: messages, contact
// numbers and leads. Outbound identities, agents and templates survive.
// Destructive; callers must gate this against production.
func (r *Repository) ResetAllConversations(ctx context.Context) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM messages`,
			`DELETE FROM contact_numbers`,
			`DELETE FROM leads`,
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
