package service

import "encounter-recs/internal/domain"

// IsUnlocked decide si una categoria esta disponible para la cantidad de rasgos dada.
// Es pura y se evalua en cada request; nunca se cachea.
func IsUnlocked(category domain.Category, traitCount int) domain.UnlockStatus {
	required := domain.RequiredTraits[category]
	remaining := required - traitCount
	if remaining < 0 {
		remaining = 0
	}
	return domain.UnlockStatus{
		Category:  category,
		Unlocked:  remaining == 0,
		Remaining: remaining,
		Required:  required,
	}
}

// UnlockAll evalua la puerta para todas las categorias.
func UnlockAll(traitCount int) []domain.UnlockStatus {
	out := make([]domain.UnlockStatus, 0, len(domain.Categories))
	for _, c := range domain.Categories {
		out = append(out, IsUnlocked(c, traitCount))
	}
	return out
}
