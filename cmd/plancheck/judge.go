package main

import (
	"context"
	"fmt"
	"strings"

	"encounter-recs/internal/domain"
	"encounter-recs/internal/llm"
	"encounter-recs/internal/service"
)

// judgeResponse es la evaluacion estructurada que devuelve el juez.
type judgeResponse struct {
	Reasoning      string `json:"reasoning"`
	RelevanceScore int    `json:"relevance_score"`
	DiversityScore int    `json:"diversity_score"`
}

// Palabras que no sirven como busqueda en ningun catalogo.
var genericKeywords = map[string]bool{
	"libro":     true,
	"libros":    true,
	"pelicula":  true,
	"peliculas": true,
	"producto":  true,
	"regalo":    true,
	"curso":     true,
	"cosas":     true,
}

func evaluatePlan(ctx context.Context, judge llm.LLMClient, category domain.Category, traits []domain.Trait, plan domain.IntentPlan) (judgeResponse, error) {
	generic := detectGenericKeywords(plan.SearchIntents)
	prompt := buildJudgePrompt(category, formatTraits(traits), plan, len(generic))

	raw, err := judge.Generate(ctx, prompt)
	if err != nil {
		return judgeResponse{}, err
	}

	var jr judgeResponse
	if err := service.DecodeLLMJSON(raw, &jr); err != nil {
		return judgeResponse{}, fmt.Errorf("judge returned non-json: %w (raw=%q)", err, raw)
	}

	jr.RelevanceScore = clamp1to5(jr.RelevanceScore)
	jr.DiversityScore = clamp1to5(jr.DiversityScore)

	// Una busqueda generica no personaliza nada.
	if len(generic) > 0 && jr.RelevanceScore > 2 {
		jr.RelevanceScore = 2
	}
	return jr, nil
}

func buildJudgePrompt(category domain.Category, traits string, plan domain.IntentPlan, genericCount int) string {
	var b strings.Builder
	for _, in := range plan.SearchIntents {
		fmt.Fprintf(&b, "- %q (rasgos: %s) %s\n", in.Keyword, strings.Join(in.MatchedTraitLabels, ", "), in.Reason)
	}
	return fmt.Sprintf(`Eres un evaluador de sistemas de recomendacion.
Categoria: %s
Rasgos del usuario: %s
Contexto generado: %s
Busquedas propuestas:
%s
Indicadores heuristicos: busquedas_genericas=%d

Evalua del 1 al 5:
- relevance_score: que tan bien las busquedas reflejan los rasgos.
- diversity_score: que tan distintas son entre si.

Responde SOLO con JSON: {"reasoning": "...", "relevance_score": n, "diversity_score": n}`,
		category, traits, plan.PersonalityContext, b.String(), genericCount)
}

func detectGenericKeywords(intents []domain.SearchIntent) []string {
	var out []string
	for _, in := range intents {
		if genericKeywords[strings.ToLower(strings.TrimSpace(in.Keyword))] {
			out = append(out, in.Keyword)
		}
	}
	return out
}

func clamp1to5(v int) int {
	if v < 1 {
		return 1
	}
	if v > 5 {
		return 5
	}
	return v
}

func formatTraits(traits []domain.Trait) string {
	var parts []string
	for _, t := range traits {
		parts = append(parts, fmt.Sprintf("%s: %.2f", t.Label, t.Confidence))
	}
	return strings.Join(parts, ", ")
}
