package domain

import "time"

// SearchIntent es una busqueda propuesta por el planner. Solo Keyword participa de la clave del cache.
type SearchIntent struct {
	Keyword            string   `json:"keyword"`
	CategoryHint       string   `json:"category_hint,omitempty"`
	Reason             string   `json:"reason"`
	MatchedTraitLabels []string `json:"matched_trait_labels"`
}

// IntentPlan es la salida validada del planner.
type IntentPlan struct {
	SearchIntents      []SearchIntent `json:"search_intents"`
	PersonalityContext string         `json:"personality_context"`
	TraitsUsed         int            `json:"traits_used"`
}

// RecommendedItem agrega la personalizacion a un producto. Se construye por request y nunca se cachea.
type RecommendedItem struct {
	NormalizedProduct
	Reason        string   `json:"reason"`
	MatchedTraits []string `json:"matched_traits"`
	Score         float64  `json:"score"`
}

// RecommendationResult es la respuesta de una recomendacion.
type RecommendationResult struct {
	Category           Category          `json:"category"`
	Items              []RecommendedItem `json:"items"`
	PersonalityContext string            `json:"personality_context"`
	TraitsUsedCount    int               `json:"traits_used_count"`
	GeneratedAt        time.Time         `json:"generated_at"`
}

// RecommendationSnapshot es la ultima recomendacion materializada para un usuario y categoria.
type RecommendationSnapshot struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"user_id"`
	Category           Category          `json:"category"`
	Recommendations    []RecommendedItem `json:"recommendations"`
	PersonalityContext string            `json:"personality_context"`
	TraitsUsedCount    int               `json:"traits_used_count"`
	GeneratedAt        time.Time         `json:"generated_at"`
	ExpiresAt          time.Time         `json:"expires_at"`
}

// UnlockStatus es el resultado de la puerta de desbloqueo.
type UnlockStatus struct {
	Category  Category `json:"category"`
	Unlocked  bool     `json:"unlocked"`
	Remaining int      `json:"remaining"`
	Required  int      `json:"required"`
}
