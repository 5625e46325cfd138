package repository

import (
	"context"

	"encounter-recs/internal/domain"
)

// TraitRepository lee los rasgos ya extraidos. La extraccion vive en otro servicio.
type TraitRepository interface {
	FindByUserID(ctx context.Context, userID string) ([]domain.Trait, error)
	CountByUserID(ctx context.Context, userID string) (int, error)
}

type PgTraitRepository struct {
	db DBTX
}

func NewPgTraitRepository(db DBTX) *PgTraitRepository {
	return &PgTraitRepository{db: db}
}

func (r *PgTraitRepository) FindByUserID(ctx context.Context, userID string) ([]domain.Trait, error) {
	const query = `
		SELECT id, user_id, label, category, confidence, keywords, extracted_at
		FROM traits
		WHERE user_id = $1
		ORDER BY confidence DESC, extracted_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	traits := make([]domain.Trait, 0)
	for rows.Next() {
		var t domain.Trait
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Label,
			&t.Category,
			&t.Confidence,
			&t.Keywords,
			&t.ExtractedAt,
		); err != nil {
			return nil, err
		}
		traits = append(traits, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return traits, nil
}

func (r *PgTraitRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM traits WHERE user_id = $1`
	var n int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
