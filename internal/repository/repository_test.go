package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encounter-recs/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPgTraitRepository_FindByUserID(t *testing.T) {
	mock := newMock(t)
	repo := NewPgTraitRepository(mock)
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "user_id", "label", "category", "confidence", "keywords", "extracted_at"}).
		AddRow("t1", "u1", "Curiosidad", "openness", 0.9, []string{"ciencia", "preguntas"}, at).
		AddRow("t2", "u1", "Calma", "neuroticism", 0.4, []string{}, at)
	mock.ExpectQuery("FROM traits").WithArgs("u1").WillReturnRows(rows)

	traits, err := repo.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, traits, 2)
	assert.Equal(t, "Curiosidad", traits[0].Label)
	assert.Equal(t, []string{"ciencia", "preguntas"}, traits[0].Keywords)
	assert.InDelta(t, 0.4, traits[1].Confidence, 0.0001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTraitRepository_CountByUserID(t *testing.T) {
	mock := newMock(t)
	repo := NewPgTraitRepository(mock)

	mock.ExpectQuery("SELECT COUNT").WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(12))

	n, err := repo.CountByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 12, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgClickRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewPgClickRepository(mock)
	entry := domain.ClickLogEntry{
		ID:            "c1",
		UserID:        domain.AnonymousUserID,
		ProductID:     "p1",
		ProductSource: "marketplace",
		Category:      domain.CategoryGoods,
		Position:      2,
		AffiliateURL:  "https://aff/p1",
		Timestamp:     time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO click_logs").
		WithArgs("c1", "anonymous", "p1", "marketplace", "goods", 2, "https://aff/p1", entry.Timestamp, false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSnapshotRepository_SaveAndLatest(t *testing.T) {
	mock := newMock(t)
	repo := NewPgSnapshotRepository(mock)
	generated := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	snapshot := domain.RecommendationSnapshot{
		ID:       "s1",
		UserID:   "u1",
		Category: domain.CategoryBooks,
		Recommendations: []domain.RecommendedItem{{
			NormalizedProduct: domain.NormalizedProduct{ID: "b1", Source: "books", Name: "Libro"},
			Reason:            "porque si",
			MatchedTraits:     []string{"Curiosidad"},
			Score:             0.7,
		}},
		PersonalityContext: "ctx",
		TraitsUsedCount:    6,
		GeneratedAt:        generated,
		ExpiresAt:          generated.Add(24 * time.Hour),
	}

	mock.ExpectExec("INSERT INTO recommendation_snapshots").
		WithArgs("s1", "u1", "books", pgxmock.AnyArg(), "ctx", 6, generated, generated.Add(24*time.Hour)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Save(context.Background(), snapshot))

	payload := []byte(`[{"id":"b1","source":"books","name":"Libro","price":null,"image_url":"","affiliate_url":"","original_url":"","rating":null,"reason":"porque si","matched_traits":["Curiosidad"],"score":0.7}]`)
	mock.ExpectQuery("FROM recommendation_snapshots").
		WithArgs("u1", "books").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "category", "recommendations", "personality_context", "traits_used_count", "generated_at", "expires_at"}).
			AddRow("s1", "u1", "books", payload, "ctx", 6, generated, generated.Add(24*time.Hour)))

	got, ok, err := repo.Latest(context.Background(), "u1", domain.CategoryBooks)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snapshot, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSnapshotRepository_LatestMissing(t *testing.T) {
	mock := newMock(t)
	repo := NewPgSnapshotRepository(mock)

	mock.ExpectQuery("FROM recommendation_snapshots").
		WithArgs("u1", "movies").
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := repo.Latest(context.Background(), "u1", domain.CategoryMovies)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgSnapshotRepository_HistoryClampsLimit(t *testing.T) {
	mock := newMock(t)
	repo := NewPgSnapshotRepository(mock)
	t0 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "user_id", "category", "recommendations", "personality_context", "traits_used_count", "generated_at", "expires_at"}).
		AddRow("s2", "u1", "goods", []byte(`[]`), "b", 15, t0.Add(time.Hour), t0.Add(25*time.Hour)).
		AddRow("s1", "u1", "goods", []byte("null"), "a", 15, t0, t0.Add(24*time.Hour))
	mock.ExpectQuery("ORDER BY generated_at DESC").
		WithArgs("u1", "goods", MaxHistoryLimit).
		WillReturnRows(rows)

	got, err := repo.History(context.Background(), "u1", domain.CategoryGoods, 500)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s2", got[0].ID)
	assert.NotNil(t, got[1].Recommendations)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgProductCacheStore(t *testing.T) {
	mock := newMock(t)
	store := NewPgProductCacheStore(mock)
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO shared_product_cache").
		WithArgs("goods:taza", []byte(`{}`), now.Add(time.Hour), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, store.Save(ctx, "goods:taza", []byte(`{}`), time.Hour))

	mock.ExpectQuery("SELECT payload FROM shared_product_cache").
		WithArgs("goods:nada").
		WillReturnError(pgx.ErrNoRows)
	_, ok, err := store.Load(ctx, "goods:nada")
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery("SELECT cache_key, payload").
		WithArgs(`goods:%`).
		WillReturnRows(pgxmock.NewRows([]string{"cache_key", "payload"}).AddRow("goods:taza", []byte(`{}`)))
	all, err := store.Scan(ctx, "goods:")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"goods:taza": []byte(`{}`)}, all)

	mock.ExpectExec("DELETE FROM shared_product_cache WHERE cache_key").
		WithArgs(`%`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	n, err := store.Delete(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mock.ExpectExec("DELETE FROM shared_product_cache WHERE expires_at").
		WithArgs(now).
		WillReturnError(errors.New("conn reset"))
	_, err = store.PurgeExpired(ctx)
	assert.Error(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLikePrefixEscapesWildcards(t *testing.T) {
	assert.Equal(t, `books:deep\_work%`, likePrefix("books:deep_work"))
	assert.Equal(t, `%`, likePrefix(""))
}
