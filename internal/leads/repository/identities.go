package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// WildcardRegion matches identities usable for any region.
const WildcardRegion = "all"

const selectIdentitySQL = `
		SELECT id, agent_id, number, instance_id, region, status, usage_count, last_used_at
		FROM outbound_identities
		WHERE agent_id = $1 AND region = $2 AND status = 'active'
		ORDER BY usage_count ASC, last_used_at ASC NULLS FIRST, id ASC
		LIMIT 1
		FOR UPDATE`

// SelectOutboundIdentity picks the least-used active identity for the agent
// and region, falling back to the wildcard region when none matches. The
// row is locked for the duration of the transaction so concurrent callers
// cannot both observe the same stale usage count; the usage counter and
// last-used timestamp are bumped before commit.
func (r *Repository) SelectOutboundIdentity(ctx context.Context, agentID int64, region string) (OutboundIdentity, error) {
	var identity OutboundIdentity

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, selectIdentitySQL, agentID, region).Scan(
			&identity.ID, &identity.AgentID, &identity.Number, &identity.InstanceID,
			&identity.Region, &identity.Status, &identity.UsageCount, &identity.LastUsedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) && region != WildcardRegion {
			err = tx.QueryRow(ctx, selectIdentitySQL, agentID, WildcardRegion).Scan(
				&identity.ID, &identity.AgentID, &identity.Number, &identity.InstanceID,
				&identity.Region, &identity.Status, &identity.UsageCount, &identity.LastUsedAt,
			)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE outbound_identities
			SET usage_count = usage_count + 1, last_used_at = now()
			WHERE id = $1
		`, identity.ID)
		return err
	})
	if err != nil {
		return OutboundIdentity{}, err
	}

	identity.UsageCount++
	return identity, nil
}

// GetOutboundIdentity fetches an identity by id.
func (r *Repository) GetOutboundIdentity(ctx context.Context, id int64) (OutboundIdentity, error) {
	var identity OutboundIdentity
	err := r.pool.QueryRow(ctx, `
		SELECT id, agent_id, number, instance_id, region, status, usage_count, last_used_at
		FROM outbound_identities
		WHERE id = $1
	`, id).Scan(
		&identity.ID, &identity.AgentID, &identity.Number, &identity.InstanceID,
		&identity.Region, &identity.Status, &identity.UsageCount, &identity.LastUsedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutboundIdentity{}, ErrNotFound
	}
	return identity, err
}
