package service

import "encounter-recs/internal/domain"

const intentPromptTemplate = `
Eres un curador de "encuentros": recomiendas %s a una persona a partir de su perfil de personalidad.

Perfil (rasgo | confianza 0-1 | palabras asociadas):
%s

Guia de la categoria:
%s

Tabla de afinidad personalidad -> producto (usala como referencia, no como lista cerrada):
%s

Instrucciones:
1) Propon entre 3 y %d busquedas distintas. Cada keyword debe tener 1 a 3 palabras y funcionar en un buscador de catalogo (sin comillas, sin signos).
2) category_hint debe ser uno de: %s. Si ninguno aplica, devuelve "".
3) matched_traits solo puede contener rasgos del perfil, escritos igual que arriba.
4) reason es una frase corta en segunda persona que explica por que encaja.
5) personality_context resume en 1-2 frases que busca esta persona en la categoria.

Devuelve SOLO un JSON con este formato:
{
  "search_intents": [
    {"keyword": "...", "category_hint": "...", "reason": "...", "matched_traits": ["..."]}
  ],
  "personality_context": "..."
}
`

// categoryGuidance orienta al planner segun lo que cada catalogo sabe buscar.
var categoryGuidance = map[domain.Category]string{
	domain.CategoryBooks:  "Libros en un catalogo general. Prefiere generos, temas o formatos (ej: ensayo de ciencia, novela policial) antes que titulos exactos.",
	domain.CategoryMovies: "Peliculas en una base de metadatos. Usa temas, generos o conceptos que aparezcan en titulos o sinopsis; evita nombres de actores.",
	domain.CategoryGoods:  "Productos fisicos en un marketplace. Usa sustantivos concretos de producto (ej: lampara de escritorio, taza termica), nunca conceptos abstractos.",
	domain.CategorySkills: "Habilidades para aprender: libros practicos y material de estudio. Usa el nombre de la habilidad mas el formato (ej: python introduccion, acuarela basica).",
}

type affinityRow struct {
	Trait  string
	Books  string
	Movies string
	Goods  string
	Skills string
}

// personalityAffinity es la tabla estatica de afinidades que se embebe como contexto.
var personalityAffinity = []affinityRow{
	{"curiosidad intelectual", "divulgacion cientifica, filosofia", "documentales, ciencia ficcion", "gadgets, kits de experimentos", "programacion, idiomas"},
	{"creatividad", "arte, diseno, novela experimental", "animacion, fantasia", "material de dibujo, papeleria", "diseno, musica, escritura"},
	{"orden y planificacion", "productividad, negocios", "biopics, dramas de procesos", "organizadores, agendas", "gestion, finanzas"},
	{"sociabilidad", "ensayos de relaciones, humor", "comedia, romance", "juegos de mesa, articulos de fiesta", "oratoria, idiomas"},
	{"empatia", "novela intimista, psicologia", "drama, coming of age", "regalos artesanales, plantas", "counseling, cocina"},
	{"sensibilidad emocional", "poesia, autoayuda", "drama, animacion", "aromaterapia, textiles suaves", "meditacion, escritura"},
	{"aventura", "viajes, aventura", "accion, aventura", "outdoor, camping", "deportes, fotografia"},
	{"calma e introspeccion", "ensayo, filosofia oriental", "cine contemplativo", "te, incienso, lectura", "meditacion, caligrafia"},
	{"competitividad", "biografias, estrategia", "deportes, thriller", "equipamiento deportivo", "deportes, ajedrez"},
	{"estetica", "fotografia, arte", "cine de autor", "interior, decoracion", "diseno, fotografia"},
}

func (r affinityRow) column(c domain.Category) string {
	switch c {
	case domain.CategoryBooks:
		return r.Books
	case domain.CategoryMovies:
		return r.Movies
	case domain.CategoryGoods:
		return r.Goods
	default:
		return r.Skills
	}
}
