package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/llm"
)

var (
	ErrPlanningFailed = errors.New("planning failed")
	ErrNoTraits       = errors.New("no traits")
)

const (
	defaultPlannerTraits  = 20
	defaultPlannerIntents = 5
	maxKeywordRunes       = 30
	maxReasonRunes        = 160
	maxContextRunes       = 400
)

// IntentPlanner convierte rasgos en busquedas concretas usando el LLM.
// Es dueño del contrato de parseo: o devuelve un plan valido o ErrPlanningFailed.
type IntentPlanner struct {
	llmClient  llm.LLMClient
	logger     *zap.Logger
	maxTraits  int
	maxIntents int
}

func NewIntentPlanner(llmClient llm.LLMClient, logger *zap.Logger) *IntentPlanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentPlanner{
		llmClient:  llmClient,
		logger:     logger,
		maxTraits:  defaultPlannerTraits,
		maxIntents: defaultPlannerIntents,
	}
}

// Plan genera las intenciones de busqueda para la categoria.
func (p *IntentPlanner) Plan(ctx context.Context, category domain.Category, traits []domain.Trait) (domain.IntentPlan, error) {
	if len(traits) == 0 {
		return domain.IntentPlan{}, fmt.Errorf("%w: %w", ErrPlanningFailed, ErrNoTraits)
	}
	top := TopTraits(traits, p.maxTraits)

	raw, err := p.llmClient.Generate(ctx, buildIntentPrompt(category, top, p.maxIntents))
	if err != nil {
		return domain.IntentPlan{}, fmt.Errorf("%w: llm generate: %w", ErrPlanningFailed, err)
	}

	plan, err := parseIntentPlan(raw, category, top, p.maxIntents)
	if err != nil {
		p.logger.Warn("intent plan rejected",
			zap.String("category", category.String()),
			zap.Error(err),
			zap.Int("raw_len", len(raw)),
		)
		return domain.IntentPlan{}, fmt.Errorf("%w: %w", ErrPlanningFailed, err)
	}
	return plan, nil
}

// TopTraits devuelve hasta n rasgos ordenados por confianza descendente.
// A igual confianza gana el mas reciente.
func TopTraits(traits []domain.Trait, n int) []domain.Trait {
	sorted := make([]domain.Trait, len(traits))
	copy(sorted, traits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Confidence != sorted[j].Confidence {
			return sorted[i].Confidence > sorted[j].Confidence
		}
		return sorted[i].ExtractedAt.After(sorted[j].ExtractedAt)
	})
	if n > 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func buildIntentPrompt(category domain.Category, traits []domain.Trait, maxIntents int) string {
	profile := make([]string, 0, len(traits))
	for _, t := range traits {
		line := fmt.Sprintf("- %s | %.2f", t.Label, t.Confidence)
		if len(t.Keywords) > 0 {
			line += " | " + strings.Join(t.Keywords, ", ")
		}
		profile = append(profile, line)
	}

	affinity := make([]string, 0, len(personalityAffinity))
	for _, row := range personalityAffinity {
		affinity = append(affinity, fmt.Sprintf("- %s -> %s", row.Trait, row.column(category)))
	}

	return fmt.Sprintf(intentPromptTemplate,
		category.String(),
		strings.Join(profile, "\n"),
		categoryGuidance[category],
		strings.Join(affinity, "\n"),
		maxIntents,
		strings.Join(domain.CategoryHints[category], ", "),
	)
}

type llmIntentPlan struct {
	SearchIntents      []llmIntent `json:"search_intents"`
	PersonalityContext string      `json:"personality_context"`
}

type llmIntent struct {
	Keyword       string   `json:"keyword"`
	CategoryHint  string   `json:"category_hint"`
	Reason        string   `json:"reason"`
	MatchedTraits []string `json:"matched_traits"`
}

// parseIntentPlan valida y recorta la respuesta del LLM.
func parseIntentPlan(raw string, category domain.Category, traits []domain.Trait, maxIntents int) (domain.IntentPlan, error) {
	var parsed llmIntentPlan
	if err := decodeFirstJSONObject(raw, &parsed); err != nil {
		return domain.IntentPlan{}, fmt.Errorf("parse intent plan: %w", err)
	}

	personality := truncateRunes(collapseSpaces(parsed.PersonalityContext), maxContextRunes)
	if personality == "" {
		return domain.IntentPlan{}, errors.New("personality_context missing")
	}
	if len(parsed.SearchIntents) == 0 {
		return domain.IntentPlan{}, errors.New("search_intents missing")
	}

	labels := make(map[string]string, len(traits))
	for _, t := range traits {
		labels[strings.ToLower(strings.TrimSpace(t.Label))] = t.Label
	}

	seen := make(map[string]bool)
	intents := make([]domain.SearchIntent, 0, len(parsed.SearchIntents))
	for _, in := range parsed.SearchIntents {
		keyword := truncateRunes(collapseSpaces(in.Keyword), maxKeywordRunes)
		if keyword == "" {
			continue
		}
		key := NormalizeKeyword(keyword)
		if seen[key] {
			continue
		}
		seen[key] = true

		hint, _ := category.ValidHint(in.CategoryHint)
		matched := matchTraitLabels(in.MatchedTraits, labels)
		reason := truncateRunes(collapseSpaces(in.Reason), maxReasonRunes)
		if reason == "" && len(matched) > 0 {
			reason = "Encaja con tu lado " + strings.Join(matched, ", ")
		}

		intents = append(intents, domain.SearchIntent{
			Keyword:            keyword,
			CategoryHint:       hint,
			Reason:             reason,
			MatchedTraitLabels: matched,
		})
		if len(intents) == maxIntents {
			break
		}
	}
	if len(intents) == 0 {
		return domain.IntentPlan{}, errors.New("no usable search intents")
	}

	return domain.IntentPlan{
		SearchIntents:      intents,
		PersonalityContext: personality,
		TraitsUsed:         len(traits),
	}, nil
}

func matchTraitLabels(candidates []string, labels map[string]string) []string {
	out := make([]string, 0, len(candidates))
	seen := make(map[string]bool)
	for _, c := range candidates {
		label, ok := labels[strings.ToLower(strings.TrimSpace(c))]
		if !ok || seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}
