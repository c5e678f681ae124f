package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// UpsertLeadParams creates or refreshes the local record of a CRM lead.
type UpsertLeadParams struct {
	CRMLeadID    int64
	CRMContactID int64
	AgentID      int64
	ContactName  string
}

// UpsertLead inserts the lead or updates its contact metadata, returning the
// stored row either way.
func (r *Repository) UpsertLead(ctx context.Context, params UpsertLeadParams) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		INSERT INTO leads (crm_lead_id, crm_contact_id, agent_id, contact_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (crm_lead_id) DO UPDATE SET
			crm_contact_id = EXCLUDED.crm_contact_id,
			agent_id = EXCLUDED.agent_id,
			contact_name = EXCLUDED.contact_name,
			updated_at = now()
		RETURNING id, crm_lead_id, COALESCE(crm_contact_id, 0), COALESCE(agent_id, 0), contact_name, status, created_at
	`, params.CRMLeadID, params.CRMContactID, params.AgentID, params.ContactName).Scan(
		&lead.ID, &lead.CRMLeadID, &lead.CRMContactID, &lead.AgentID,
		&lead.ContactName, &lead.Status, &lead.CreatedAt,
	)
	return lead, err
}

// SyncNumbers inserts each normalized number under the lead with status
// untried, ignoring duplicates. Idempotent: re-syncing the same list is a
// no-op.
func (r *Repository) SyncNumbers(ctx context.Context, leadID int64, numbers []string) error {
	if len(numbers) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, number := range numbers {
			_, err := tx.Exec(ctx, `
				INSERT INTO contact_numbers (lead_id, number)
				VALUES ($1, $2)
				ON CONFLICT (lead_id, number) DO NOTHING
			`, leadID, number)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// NextUntriedNumber returns the earliest-inserted untried number under the
// lead.
func (r *Repository) NextUntriedNumber(ctx context.Context, leadID int64) (ContactNumber, error) {
	var number ContactNumber
	err := r.pool.QueryRow(ctx, `
		SELECT id, lead_id, number, status, created_at
		FROM contact_numbers
		WHERE lead_id = $1 AND status = 'untried'
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, leadID).Scan(&number.ID, &number.LeadID, &number.Number, &number.Status, &number.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ContactNumber{}, ErrNotFound
	}
	return number, err
}

// DequeuePendingLead returns the oldest in-progress lead that still has an
// untried number.
func (r *Repository) DequeuePendingLead(ctx context.Context) (Lead, error) {
	var lead Lead
	err := r.pool.QueryRow(ctx, `
		SELECT l.id, l.crm_lead_id, COALESCE(l.crm_contact_id, 0), COALESCE(l.agent_id, 0), l.contact_name, l.status, l.created_at
		FROM leads l
		WHERE l.status = 'in_progress'
		  AND EXISTS (
			SELECT 1 FROM contact_numbers n
			WHERE n.lead_id = l.id AND n.status = 'untried'
		  )
		ORDER BY l.created_at ASC, l.id ASC
		LIMIT 1
	`).Scan(&lead.ID, &lead.CRMLeadID, &lead.CRMContactID, &lead.AgentID,
		&lead.ContactName, &lead.Status, &lead.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// ListExhaustedLeads returns in-progress leads where every contact number
// reached a terminal status. Leads with zero numbers are excluded so a
// fresh lead is never auto-closed before its numbers are synced.
func (r *Repository) ListExhaustedLeads(ctx context.Context) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT l.id, l.crm_lead_id, COALESCE(l.crm_contact_id, 0), COALESCE(l.agent_id, 0), l.contact_name, l.status, l.created_at
		FROM leads l
		JOIN contact_numbers n ON n.lead_id = l.id
		WHERE l.status = 'in_progress'
		GROUP BY l.id
		HAVING COUNT(*) > 0
		   AND COUNT(*) FILTER (WHERE n.status IN ('untried', 'awaiting_reply', 'in_progress')) = 0
		ORDER BY l.created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLeads(rows)
}

// ListExpiredLeads returns in-progress leads created more than maxAge ago.
func (r *Repository) ListExpiredLeads(ctx context.Context, maxAge time.Duration) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, crm_lead_id, COALESCE(crm_contact_id, 0), COALESCE(agent_id, 0), contact_name, status, created_at
		FROM leads
		WHERE status = 'in_progress' AND created_at < now() - ($1 * interval '1 second')
		ORDER BY created_at ASC
	`, int64(maxAge.Seconds()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLeads(rows)
}

// ConcludeLead flips the lead to its terminal lifecycle status.
func (r *Repository) ConcludeLead(ctx context.Context, leadID int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE leads SET status = 'concluded', updated_at = now() WHERE id = $1
	`, leadID)
	return err
}

func scanLeads(rows pgx.Rows) ([]Lead, error) {
	leads := make([]Lead, 0)
	for rows.Next() {
		var lead Lead
		if err := rows.Scan(&lead.ID, &lead.CRMLeadID, &lead.CRMContactID, &lead.AgentID,
			&lead.ContactName, &lead.Status, &lead.CreatedAt); err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return leads, nil
}
