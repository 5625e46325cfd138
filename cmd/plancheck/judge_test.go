package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/llm"
)

func TestDetectGenericKeywords(t *testing.T) {
	got := detectGenericKeywords([]domain.SearchIntent{
		{Keyword: "Libros"},
		{Keyword: "novela negra nordica"},
		{Keyword: " regalo "},
	})
	if len(got) != 2 {
		t.Fatalf("expected two generic keywords, got %v", got)
	}
}

func TestEvaluatePlanClampsScores(t *testing.T) {
	judge := &llm.MockClient{Response: "```json\n{\"reasoning\":\"ok\",\"relevance_score\":9,\"diversity_score\":0}\n```"}
	plan := domain.IntentPlan{SearchIntents: []domain.SearchIntent{{Keyword: "astronomia para principiantes"}}}

	jr, err := evaluatePlan(context.Background(), judge, domain.CategoryBooks, nil, plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jr.RelevanceScore != 5 || jr.DiversityScore != 1 {
		t.Fatalf("expected clamped scores, got %+v", jr)
	}
	if !strings.Contains(judge.Prompts[0], "astronomia para principiantes") {
		t.Fatalf("prompt must list the keywords")
	}
}

func TestEvaluatePlanPenalizesGenericKeywords(t *testing.T) {
	judge := &llm.MockClient{Response: `{"reasoning":"ok","relevance_score":5,"diversity_score":4}`}
	plan := domain.IntentPlan{SearchIntents: []domain.SearchIntent{{Keyword: "pelicula"}}}

	jr, err := evaluatePlan(context.Background(), judge, domain.CategoryMovies, nil, plan)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jr.RelevanceScore != 2 {
		t.Fatalf("expected relevance capped at 2, got %d", jr.RelevanceScore)
	}
}

func TestEvaluatePlanRejectsNonJSON(t *testing.T) {
	judge := &llm.MockClient{Response: "no puedo evaluar esto"}
	if _, err := evaluatePlan(context.Background(), judge, domain.CategoryGoods, nil, domain.IntentPlan{}); err == nil {
		t.Fatalf("expected error for non-json judge output")
	}
}

type fakePlanner struct {
	plan domain.IntentPlan
	err  error
}

func (f fakePlanner) Plan(context.Context, domain.Category, []domain.Trait) (domain.IntentPlan, error) {
	return f.plan, f.err
}

func TestRunScenariosSummary(t *testing.T) {
	judge := &llm.MockClient{Response: `{"reasoning":"bien","relevance_score":4,"diversity_score":3}`}
	planner := fakePlanner{plan: domain.IntentPlan{
		SearchIntents:      []domain.SearchIntent{{Keyword: "kit de acuarela"}},
		PersonalityContext: "creativo",
	}}
	var out bytes.Buffer

	s := runScenarios(context.Background(), planner, judge, defaultScenarios()[:1], []domain.Category{domain.CategoryGoods, domain.CategoryBooks}, &out)
	if s.runs != 2 || s.failures != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.avgRelevance() != 4 || s.avgDiversity() != 3 {
		t.Fatalf("unexpected averages %v %v", s.avgRelevance(), s.avgDiversity())
	}

	s = runScenarios(context.Background(), fakePlanner{err: errors.New("planning failed")}, judge, defaultScenarios()[:1], []domain.Category{domain.CategoryGoods}, &out)
	if s.failures != 1 || s.avgRelevance() != 0 {
		t.Fatalf("expected one failure, got %+v", s)
	}
}

func TestSelectCategories(t *testing.T) {
	all, err := selectCategories("")
	if err != nil || len(all) != len(domain.Categories) {
		t.Fatalf("expected every category, got %v %v", all, err)
	}
	one, err := selectCategories(" Movies ")
	if err != nil || len(one) != 1 || one[0] != domain.CategoryMovies {
		t.Fatalf("expected movies only, got %v %v", one, err)
	}
	if _, err := selectCategories("music"); err == nil {
		t.Fatalf("expected error for unknown category")
	}
}
