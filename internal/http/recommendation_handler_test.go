package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/service"
)

type stubTraitRepo struct {
	count int
}

func (s *stubTraitRepo) FindByUserID(context.Context, string) ([]domain.Trait, error) {
	out := make([]domain.Trait, 0, s.count)
	for i := 0; i < s.count; i++ {
		out = append(out, domain.Trait{ID: fmt.Sprint(i), Label: fmt.Sprintf("rasgo %d", i), Confidence: 0.5})
	}
	return out, nil
}

func (s *stubTraitRepo) CountByUserID(context.Context, string) (int, error) {
	return s.count, nil
}

type stubSnapshotRepo struct {
	latest  *domain.RecommendationSnapshot
	history []domain.RecommendationSnapshot
	limit   int
}

func (s *stubSnapshotRepo) Save(context.Context, domain.RecommendationSnapshot) error { return nil }

func (s *stubSnapshotRepo) Latest(context.Context, string, domain.Category) (domain.RecommendationSnapshot, bool, error) {
	if s.latest == nil {
		return domain.RecommendationSnapshot{}, false, nil
	}
	return *s.latest, true, nil
}

func (s *stubSnapshotRepo) History(_ context.Context, _ string, _ domain.Category, limit int) ([]domain.RecommendationSnapshot, error) {
	s.limit = limit
	return s.history, nil
}

type stubRecommender struct {
	result domain.RecommendationResult
	err    error
}

func (s *stubRecommender) Recommend(_ context.Context, _ string, category domain.Category, _ []domain.Trait) (domain.RecommendationResult, error) {
	r := s.result
	r.Category = category
	return r, s.err
}

type stubClickRepo struct {
	mu      sync.Mutex
	entries []domain.ClickLogEntry
	err     error
}

func (s *stubClickRepo) Create(_ context.Context, e domain.ClickLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return s.err
}

type routerDeps struct {
	traits    *stubTraitRepo
	snapshots *stubSnapshotRepo
	rec       *stubRecommender
	clicks    *stubClickRepo
	clickLog  *service.ClickLogger
	jwt       *service.JWTService
}

func newTestRouter(t *testing.T, deps *routerDeps) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if deps.traits == nil {
		deps.traits = &stubTraitRepo{}
	}
	if deps.snapshots == nil {
		deps.snapshots = &stubSnapshotRepo{}
	}
	if deps.rec == nil {
		deps.rec = &stubRecommender{}
	}
	if deps.clicks == nil {
		deps.clicks = &stubClickRepo{}
	}
	deps.jwt = service.NewJWTService("secret", time.Hour)
	deps.clickLog = service.NewClickLogger(deps.clicks, zap.NewNop())

	recs := service.NewRecommendationService(zap.NewNop(), deps.traits, deps.snapshots, deps.rec, time.Hour)
	store, err := service.NewMemoryProductCacheStore(16)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	cache := service.NewSharedCache(store, time.Hour, zap.NewNop())

	return NewRouter(zap.NewNop(), deps.jwt,
		NewRecommendationHandler(zap.NewNop(), recs, deps.clickLog),
		NewDebugHandler(zap.NewNop(), cache),
	)
}

func doRequest(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func mustToken(t *testing.T, deps *routerDeps, userID string) string {
	t.Helper()
	token, err := deps.jwt.IssueAccessToken(userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestGetRecommendations_StatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		traits int
		err    error
		path   string
		want   int
	}{
		{"ok", 15, nil, "/recommendations/goods", http.StatusOK},
		{"invalid category", 30, nil, "/recommendations/music", http.StatusBadRequest},
		{"locked", 4, nil, "/recommendations/books", http.StatusForbidden},
		{"planning failed", 20, fmt.Errorf("%w: bad json", service.ErrPlanningFailed), "/recommendations/skills", http.StatusServiceUnavailable},
		{"rate limited", 20, service.ErrRateLimited, "/recommendations/books", http.StatusTooManyRequests},
		{"unexpected", 20, errors.New("boom"), "/recommendations/skills", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := &routerDeps{
				traits: &stubTraitRepo{count: tc.traits},
				rec: &stubRecommender{err: tc.err, result: domain.RecommendationResult{
					PersonalityContext: "ctx",
					TraitsUsedCount:    tc.traits,
					GeneratedAt:        time.Now().UTC(),
				}},
			}
			r := newTestRouter(t, deps)
			rec := doRequest(t, r, http.MethodGet, tc.path, mustToken(t, deps, "u1"), nil)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetRecommendations_EmptyItemsAndLockedPayload(t *testing.T) {
	deps := &routerDeps{
		traits: &stubTraitRepo{count: 15},
		rec:    &stubRecommender{result: domain.RecommendationResult{PersonalityContext: "ctx", TraitsUsedCount: 15}},
	}
	r := newTestRouter(t, deps)

	rec := doRequest(t, r, http.MethodGet, "/recommendations/goods", mustToken(t, deps, "u1"), nil)
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	items, ok := body["items"].([]any)
	if !ok || len(items) != 0 {
		t.Fatalf("expected empty items array, got %v", body["items"])
	}
	if body["personality_context"] != "ctx" {
		t.Fatalf("unexpected context %v", body["personality_context"])
	}

	rec = doRequest(t, r, http.MethodGet, "/recommendations/skills", mustToken(t, deps, "u1"), nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusForbidden || body["remaining"] != float64(5) {
		t.Fatalf("expected 403 with remaining 5, got %d %v", rec.Code, body)
	}
}

func TestRecommendationRoutesRequireAuth(t *testing.T) {
	r := newTestRouter(t, &routerDeps{})
	for _, path := range []string{"/recommendations/books", "/recommendations/books/cached", "/recommendations/books/history", "/unlock-status"} {
		rec := doRequest(t, r, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}
}

func TestGetCached(t *testing.T) {
	deps := &routerDeps{snapshots: &stubSnapshotRepo{}}
	r := newTestRouter(t, deps)
	token := mustToken(t, deps, "u1")

	rec := doRequest(t, r, http.MethodGet, "/recommendations/movies/cached", token, nil)
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusOK || body["cached"] != nil || body["is_expired"] != true {
		t.Fatalf("unexpected empty cached response %d %v", rec.Code, body)
	}

	deps.snapshots.latest = &domain.RecommendationSnapshot{
		PersonalityContext: "ctx",
		TraitsUsedCount:    11,
		ExpiresAt:          time.Now().Add(time.Hour),
	}
	rec = doRequest(t, r, http.MethodGet, "/recommendations/movies/cached", token, nil)
	body = map[string]any{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	cached, ok := body["cached"].(map[string]any)
	if !ok || cached["traits_used_count"] != float64(11) || body["is_expired"] != false {
		t.Fatalf("unexpected cached response %v", body)
	}
}

func TestGetHistory_Limit(t *testing.T) {
	deps := &routerDeps{snapshots: &stubSnapshotRepo{}}
	r := newTestRouter(t, deps)
	token := mustToken(t, deps, "u1")

	rec := doRequest(t, r, http.MethodGet, "/recommendations/books/history?limit=5", token, nil)
	if rec.Code != http.StatusOK || deps.snapshots.limit != 5 {
		t.Fatalf("expected 200 with limit 5, got %d limit %d", rec.Code, deps.snapshots.limit)
	}
	rec = doRequest(t, r, http.MethodGet, "/recommendations/books/history?limit=abc", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestTrackClick_AlwaysRedirectsEvenWhenLoggingFails(t *testing.T) {
	deps := &routerDeps{clicks: &stubClickRepo{err: errors.New("insert failed")}}
	r := newTestRouter(t, deps)

	payload := map[string]any{
		"product_id":     "p1",
		"product_source": "marketplace",
		"affiliate_url":  "https://aff.example/p1",
		"category":       "goods",
		"position":       4,
	}
	rec := doRequest(t, r, http.MethodPost, "/recommendations/click", "", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["redirect_url"] != "https://aff.example/p1" {
		t.Fatalf("unexpected redirect %q", body["redirect_url"])
	}

	rec = doRequest(t, r, http.MethodPost, "/recommendations/click", mustToken(t, deps, "u7"), payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for authenticated click, got %d", rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := deps.clickLog.Wait(ctx); err != nil {
		t.Fatalf("wait clicks: %v", err)
	}
	deps.clicks.mu.Lock()
	defer deps.clicks.mu.Unlock()
	if len(deps.clicks.entries) != 2 {
		t.Fatalf("expected 2 click attempts, got %d", len(deps.clicks.entries))
	}
	if deps.clicks.entries[0].UserID != domain.AnonymousUserID && deps.clicks.entries[1].UserID != domain.AnonymousUserID {
		t.Fatalf("expected one anonymous click")
	}
}

func TestTrackClick_RejectsBadInput(t *testing.T) {
	r := newTestRouter(t, &routerDeps{})
	cases := []map[string]any{
		{"product_source": "books", "affiliate_url": "https://x"},
		{"product_id": "p1", "product_source": "books", "affiliate_url": "javascript:alert(1)"},
	}
	for _, payload := range cases {
		rec := doRequest(t, r, http.MethodPost, "/recommendations/click", "", payload)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", payload, rec.Code)
		}
	}
}

func TestUnlockStatusAndDebugCache(t *testing.T) {
	deps := &routerDeps{traits: &stubTraitRepo{count: 10}}
	r := newTestRouter(t, deps)

	rec := doRequest(t, r, http.MethodGet, "/unlock-status", mustToken(t, deps, "u1"), nil)
	var body struct {
		Categories []domain.UnlockStatus `json:"categories"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Categories) != len(domain.Categories) {
		t.Fatalf("expected %d categories, got %d", len(domain.Categories), len(body.Categories))
	}

	rec = doRequest(t, r, http.MethodGet, "/debug/cache/books", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for cache status, got %d", rec.Code)
	}
	rec = doRequest(t, r, http.MethodDelete, "/debug/cache/all", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for cache clear, got %d", rec.Code)
	}
	rec = doRequest(t, r, http.MethodDelete, "/debug/cache/music", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad scope, got %d", rec.Code)
	}
}
