package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// PgProductCacheStore persiste el cache compartido en Postgres.
// Se usa cuando no hay Redis disponible y se quiere que el cache sobreviva reinicios.
type PgProductCacheStore struct {
	db  DBTX
	now func() time.Time
}

func NewPgProductCacheStore(db DBTX) *PgProductCacheStore {
	return &PgProductCacheStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *PgProductCacheStore) Backend() string { return "postgres" }

func (s *PgProductCacheStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	const query = `SELECT payload FROM shared_product_cache WHERE cache_key = $1`
	var payload []byte
	err := s.db.QueryRow(ctx, query, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *PgProductCacheStore) Save(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	const query = `
		INSERT INTO shared_product_cache (cache_key, payload, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cache_key)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`
	now := s.now()
	_, err := s.db.Exec(ctx, query, key, payload, now.Add(ttl), now)
	return err
}

func (s *PgProductCacheStore) Scan(ctx context.Context, prefix string) (map[string][]byte, error) {
	const query = `SELECT cache_key, payload FROM shared_product_cache WHERE cache_key LIKE $1`
	rows, err := s.db.Query(ctx, query, likePrefix(prefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var (
			key     string
			payload []byte
		)
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, err
		}
		out[key] = payload
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PgProductCacheStore) Delete(ctx context.Context, prefix string) (int, error) {
	const query = `DELETE FROM shared_product_cache WHERE cache_key LIKE $1`
	tag, err := s.db.Exec(ctx, query, likePrefix(prefix))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// PurgeExpired borra filas vencidas. Las lecturas ya las ignoran; esto solo libera espacio.
func (s *PgProductCacheStore) PurgeExpired(ctx context.Context) (int, error) {
	const query = `DELETE FROM shared_product_cache WHERE expires_at < $1`
	tag, err := s.db.Exec(ctx, query, s.now())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
