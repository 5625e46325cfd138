package repository

import (
	"context"

	"encounter-recs/internal/domain"
)

type PgClickRepository struct {
	db DBTX
}

func NewPgClickRepository(db DBTX) *PgClickRepository {
	return &PgClickRepository{db: db}
}

func (r *PgClickRepository) Create(ctx context.Context, entry domain.ClickLogEntry) error {
	const query = `
		INSERT INTO click_logs (id, user_id, product_id, product_source, category, position, affiliate_url, clicked_at, converted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.ProductID,
		entry.ProductSource,
		entry.Category.String(),
		entry.Position,
		entry.AffiliateURL,
		entry.Timestamp,
		entry.Converted,
	)
	return err
}
