package domain

import "strings"

// Category es uno de los dominios cerrados de recomendacion.
type Category string

const (
	CategoryBooks  Category = "books"
	CategoryMovies Category = "movies"
	CategoryGoods  Category = "goods"
	CategorySkills Category = "skills"
)

// Categories lista las categorias en orden estable.
var Categories = []Category{CategoryBooks, CategoryMovies, CategoryGoods, CategorySkills}

// RequiredTraits es la cantidad de rasgos necesaria para desbloquear cada categoria.
var RequiredTraits = map[Category]int{
	CategoryBooks:  5,
	CategoryMovies: 10,
	CategoryGoods:  15,
	CategorySkills: 20,
}

// CategoryHints son las pistas validas que el planner puede devolver por categoria.
// Los adaptadores traducen cada pista a filtros propios del proveedor.
var CategoryHints = map[Category][]string{
	CategoryBooks:  {"novel", "business", "self-help", "science", "essay", "manga", "art", "history"},
	CategoryMovies: {"action", "comedy", "drama", "sci-fi", "animation", "documentary", "romance", "thriller", "fantasy", "horror"},
	CategoryGoods:  {"interior", "stationery", "kitchen", "outdoor", "fashion", "gadget", "hobby", "beauty"},
	CategorySkills: {"programming", "language", "design", "business", "music", "sports", "cooking", "writing"},
}

func (c Category) String() string {
	return string(c)
}

// Valid indica si la categoria pertenece al conjunto cerrado.
func (c Category) Valid() bool {
	_, ok := RequiredTraits[c]
	return ok
}

// ParseCategory normaliza y valida una categoria recibida desde afuera.
func ParseCategory(raw string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !c.Valid() {
		return "", false
	}
	return c, true
}

// ValidHint devuelve la pista normalizada si existe para la categoria.
func (c Category) ValidHint(hint string) (string, bool) {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return "", false
	}
	for _, allowed := range CategoryHints[c] {
		if allowed == h {
			return h, true
		}
	}
	return "", false
}
