package service

import (
	"math"
	"sort"
	"strings"

	"encounter-recs/internal/domain"
)

const (
	rankWeightTraits   = 0.5
	rankWeightRating   = 0.3
	rankWeightPosition = 0.2

	neutralRatingScore = 0.5
)

// PersonalizationRanker arma los RecommendedItem de un request a partir de productos
// normalizados y los rasgos del usuario. Su salida nunca se guarda en el cache compartido.
type PersonalizationRanker struct{}

func NewPersonalizationRanker() *PersonalizationRanker {
	return &PersonalizationRanker{}
}

// Rank devuelve items nuevos ordenados por score descendente. El orden es estable
// para scores iguales, asi que el resultado es determinista para la misma entrada.
func (r *PersonalizationRanker) Rank(hits []domain.ProductHit, intents []domain.SearchIntent, traits []domain.Trait) []domain.RecommendedItem {
	byKeyword := make(map[string]domain.SearchIntent, len(intents))
	for _, in := range intents {
		key := NormalizeKeyword(in.Keyword)
		if _, exists := byKeyword[key]; !exists {
			byKeyword[key] = in
		}
	}
	confidence := make(map[string]float64, len(traits))
	for _, t := range traits {
		label := strings.ToLower(strings.TrimSpace(t.Label))
		if c, ok := confidence[label]; !ok || t.Confidence > c {
			confidence[label] = t.Confidence
		}
	}

	items := make([]domain.RecommendedItem, 0, len(hits))
	for _, hit := range hits {
		intent := byKeyword[NormalizeKeyword(hit.Keyword)]
		matched := append([]string(nil), intent.MatchedTraitLabels...)
		if matched == nil {
			matched = []string{}
		}
		items = append(items, domain.RecommendedItem{
			NormalizedProduct: hit.Product,
			Reason:            reasonFor(intent),
			MatchedTraits:     matched,
			Score:             score(hit, matched, confidence),
		})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	return items
}

func reasonFor(intent domain.SearchIntent) string {
	if intent.Reason != "" {
		return intent.Reason
	}
	if len(intent.MatchedTraitLabels) > 0 {
		return "Encaja con tu lado " + strings.Join(intent.MatchedTraitLabels, ", ")
	}
	return "Elegido a partir de tu perfil"
}

func score(hit domain.ProductHit, matched []string, confidence map[string]float64) float64 {
	traitScore := 0.0
	if len(matched) > 0 {
		sum := 0.0
		for _, label := range matched {
			sum += confidence[strings.ToLower(strings.TrimSpace(label))]
		}
		traitScore = sum / float64(len(matched))
	}

	ratingScore := neutralRatingScore
	if hit.Product.Rating != nil {
		ratingScore = clamp01(*hit.Product.Rating / 5)
	}

	rank := hit.Rank
	if rank < 0 {
		rank = 0
	}
	positionScore := 1 / float64(1+rank)

	s := rankWeightTraits*clamp01(traitScore) + rankWeightRating*ratingScore + rankWeightPosition*positionScore
	return math.Round(clamp01(s)*1000) / 1000
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
