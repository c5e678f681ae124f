package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// PickTemplate selects the least-used active template of the given kind and
// bumps its usage counter, balancing wording across outbound messages.
func (r *Repository) PickTemplate(ctx context.Context, kind string) (Template, error) {
	var tpl Template

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id, kind, body
			FROM message_templates
			WHERE kind = $1 AND status = 'active'
			ORDER BY usage_count ASC, id ASC
			LIMIT 1
			FOR UPDATE
		`, kind).Scan(&tpl.ID, &tpl.Kind, &tpl.Body)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE message_templates SET usage_count = usage_count + 1 WHERE id = $1
		`, tpl.ID)
		return err
	})
	if err != nil {
		return Template{}, err
	}
	return tpl, nil
}
