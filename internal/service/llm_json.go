package service

import (
	"errors"
	"strings"

	"github.com/goccy/go-json"
)

var errNoJSONObject = errors.New("no json object in llm response")

// stripFences quita el BOM y un bloque ```json ... ``` que envuelva toda la respuesta.
func stripFences(raw string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF"))
	if !strings.HasPrefix(s, "```") {
		return s
	}
	// La primera linea es el fence con la etiqueta de lenguaje opcional.
	_, body, found := strings.Cut(s, "\n")
	if !found {
		return ""
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}

// jsonObjects devuelve, en orden, los objetos {...} de nivel superior que cierran
// balanceados. Las comillas solo cuentan dentro de un objeto, asi la prosa que rodea
// al JSON no altera el escaneo. Un '}' suelto fuera de un objeto se ignora.
func jsonObjects(text string) []string {
	var (
		out      []string
		start    = -1
		depth    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if depth == 0 {
			if ch == '{' {
				start, depth = i, 1
			}
			continue
		}
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				out = append(out, text[start:i+1])
				start = -1
			}
		}
	}
	return out
}

// decodeFirstJSONObject decodifica en out el primer objeto bien formado de la respuesta.
// Los bloques entre llaves que no son JSON valido para out se saltean; nunca adivina campos.
func decodeFirstJSONObject(raw string, out any) error {
	candidates := jsonObjects(stripFences(raw))
	if len(candidates) == 0 {
		return errNoJSONObject
	}
	var lastErr error
	for _, c := range candidates {
		if err := json.Unmarshal([]byte(c), out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

// DecodeLLMJSON expone la extraccion estricta para herramientas fuera del paquete.
func DecodeLLMJSON(raw string, out any) error {
	return decodeFirstJSONObject(raw, out)
}
