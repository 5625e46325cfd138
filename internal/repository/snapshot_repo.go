package repository

import (
	"context"
	"errors"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"

	"encounter-recs/internal/domain"
)

// MaxHistoryLimit acota la lectura de historial.
const MaxHistoryLimit = 20

// SnapshotRepository guarda la ultima recomendacion generada por usuario y categoria.
type SnapshotRepository interface {
	Save(ctx context.Context, snapshot domain.RecommendationSnapshot) error
	Latest(ctx context.Context, userID string, category domain.Category) (domain.RecommendationSnapshot, bool, error)
	History(ctx context.Context, userID string, category domain.Category, limit int) ([]domain.RecommendationSnapshot, error)
}

type PgSnapshotRepository struct {
	db DBTX
}

func NewPgSnapshotRepository(db DBTX) *PgSnapshotRepository {
	return &PgSnapshotRepository{db: db}
}

func (r *PgSnapshotRepository) Save(ctx context.Context, snapshot domain.RecommendationSnapshot) error {
	const query = `
		INSERT INTO recommendation_snapshots (id, user_id, category, recommendations, personality_context, traits_used_count, generated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	items := snapshot.Recommendations
	if items == nil {
		items = []domain.RecommendedItem{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		snapshot.ID,
		snapshot.UserID,
		snapshot.Category.String(),
		payload,
		snapshot.PersonalityContext,
		snapshot.TraitsUsedCount,
		snapshot.GeneratedAt,
		snapshot.ExpiresAt,
	)
	return err
}

func (r *PgSnapshotRepository) Latest(ctx context.Context, userID string, category domain.Category) (domain.RecommendationSnapshot, bool, error) {
	const query = `
		SELECT id, user_id, category, recommendations, personality_context, traits_used_count, generated_at, expires_at
		FROM recommendation_snapshots
		WHERE user_id = $1 AND category = $2
		ORDER BY generated_at DESC
		LIMIT 1
	`
	snapshot, err := scanSnapshot(r.db.QueryRow(ctx, query, userID, category.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RecommendationSnapshot{}, false, nil
	}
	if err != nil {
		return domain.RecommendationSnapshot{}, false, err
	}
	return snapshot, true, nil
}

// History devuelve los snapshots mas recientes primero.
func (r *PgSnapshotRepository) History(ctx context.Context, userID string, category domain.Category, limit int) ([]domain.RecommendationSnapshot, error) {
	const query = `
		SELECT id, user_id, category, recommendations, personality_context, traits_used_count, generated_at, expires_at
		FROM recommendation_snapshots
		WHERE user_id = $1 AND category = $2
		ORDER BY generated_at DESC
		LIMIT $3
	`
	if limit <= 0 || limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	rows, err := r.db.Query(ctx, query, userID, category.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]domain.RecommendationSnapshot, 0, limit)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

func scanSnapshot(row pgx.Row) (domain.RecommendationSnapshot, error) {
	var (
		s        domain.RecommendationSnapshot
		category string
		payload  []byte
	)
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&category,
		&payload,
		&s.PersonalityContext,
		&s.TraitsUsedCount,
		&s.GeneratedAt,
		&s.ExpiresAt,
	); err != nil {
		return domain.RecommendationSnapshot{}, err
	}
	s.Category = domain.Category(category)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &s.Recommendations); err != nil {
			return domain.RecommendationSnapshot{}, err
		}
	}
	if s.Recommendations == nil {
		s.Recommendations = []domain.RecommendedItem{}
	}
	return s, nil
}
