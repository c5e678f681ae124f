// Package repository implements Postgres persistence for leads, contact
// numbers, conversation messages, outbound identities and message templates.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a lookup misses. Always non-fatal for
// callers; flows short-circuit and log.
var ErrNotFound = errors.New("record not found")

// PgxPool is the pool subset the repository needs. pgxpool.Pool satisfies
// it in production; pgxmock satisfies it in tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository provides the persistent store operations.
type Repository struct {
	pool PgxPool
}

// New creates a repository backed by the given pool.
func New(pool PgxPool) *Repository {
	return &Repository{pool: pool}
}

// inTx runs fn inside a transaction, rolling back on error.
func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LeadStatus is the lead lifecycle status.
type LeadStatus string

const (
	LeadInProgress LeadStatus = "in_progress"
	LeadConcluded  LeadStatus = "concluded"
)

// NumberStatus is the per-number qualification status.
type NumberStatus string

const (
	NumberUntried       NumberStatus = "untried"
	NumberAwaitingReply NumberStatus = "awaiting_reply"
	NumberInProgress    NumberStatus = "in_progress"
	NumberConfirmed     NumberStatus = "confirmed"
	NumberObjection     NumberStatus = "objection"
	NumberDenied        NumberStatus = "denied"
	NumberFakeMismatch  NumberStatus = "fake_mismatch"
	NumberRelative      NumberStatus = "relative"
)

// Open reports whether the status keeps the number available for the
// conversation flow. A lead is exhausted when no number is open.
func (s NumberStatus) Open() bool {
	switch s {
	case NumberUntried, NumberAwaitingReply, NumberInProgress:
		return true
	}
	return false
}

// Sender identifies who authored a message.
type Sender string

const (
	SenderAgent Sender = "agent"
	SenderUser  Sender = "user"
)

// Agent is a local record of a CRM responsible user with a gateway instance.
type Agent struct {
	ID        int64
	CRMUserID int64
	Name      string
}

// Lead mirrors a CRM lead being qualified.
type Lead struct {
	ID           int64
	CRMLeadID    int64
	CRMContactID int64
	AgentID      int64
	ContactName  string
	Status       LeadStatus
	CreatedAt    time.Time
}

// ContactNumber is one phone number under a lead.
type ContactNumber struct {
	ID        int64
	LeadID    int64
	Number    string
	Status    NumberStatus
	CreatedAt time.Time
}

// Message is one conversation message tied to a contact number.
type Message struct {
	ID       int64
	NumberID int64
	Sender   Sender
	Content  string
	SentAt   time.Time
}

// OutboundIdentity is a sending phone identity bound to a gateway instance.
type OutboundIdentity struct {
	ID         int64
	AgentID    int64
	Number     string
	InstanceID string
	Region     string
	Status     string
	UsageCount int64
	LastUsedAt *time.Time
}

// Template is a stored message template.
type Template struct {
	ID   int64
	Kind string
	Body string
}

// FindAgentByCRMUserID resolves the local agent for a CRM responsible user.
func (r *Repository) FindAgentByCRMUserID(ctx context.Context, crmUserID int64) (Agent, error) {
	var agent Agent
	err := r.pool.QueryRow(ctx, `
		SELECT id, crm_user_id, name
		FROM agents
		WHERE crm_user_id = $1
	`, crmUserID).Scan(&agent.ID, &agent.CRMUserID, &agent.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}
