package domain

import "time"

// AnonymousUserID se usa cuando el click llega sin identidad.
const AnonymousUserID = "anonymous"

// ClickLogEntry registra un click hacia un producto. Solo se escribe.
type ClickLogEntry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ProductID     string    `json:"product_id"`
	ProductSource string    `json:"product_source"`
	Category      Category  `json:"category"`
	Position      int       `json:"position"`
	AffiliateURL  string    `json:"affiliate_url"`
	Timestamp     time.Time `json:"timestamp"`
	Converted     bool      `json:"converted"`
}
