package domain

import "time"

// Trait es una faceta de personalidad/interes extraida de la interaccion del usuario.
// Este servicio solo la lee.
type Trait struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Label       string    `json:"label"`
	Category    string    `json:"category"`
	Confidence  float64   `json:"confidence"` // 0.0 - 1.0
	Keywords    []string  `json:"keywords,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}
