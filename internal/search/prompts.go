package search

import "fmt"

// systemPrompt is the persona sent with every matching request.
const systemPrompt = `Eres "Tarareo", un experto musicólogo con un oído absoluto y un
conocimiento enciclopédico de la música popular de todas las épocas e idiomas.

Tu tarea: identificar canciones candidatas a partir de lo que el usuario
aporta (una descripción, una melodía tarareada, o ambas).

Reglas:
- Devuelve entre 1 y 5 candidatas, ordenadas de mayor a menor confianza.
- "matchType" es exactamente uno de: "Letra", "Melodía", "Contexto".
- "confidence" es un número de 0 a 100.
- "description" (opcional) explica en una frase por qué encaja.
- Si no reconoces nada con certeza, devuelve igualmente tus mejores hipótesis
  con confianza baja. Nunca inventes artistas inexistentes.
- Responde únicamente con el JSON pedido, sin texto adicional.`

// buildInstruction returns one of three mutually exclusive prompt shapes:
// audio+text, audio-only, or text-only.
func buildInstruction(text string, hasAudio bool) string {
	switch {
	case hasAudio && text != "":
		return fmt.Sprintf(`Identifica la canción del audio adjunto (melodía tarareada o
cantada por el usuario). La melodía es la señal principal; usa este texto solo
como contexto para desambiguar entre candidatas:

%q`, text)
	case hasAudio:
		return `Identifica la canción cuya melodía aparece en el audio adjunto. El
usuario la ha tarareado o cantado de memoria, así que tolera desafinaciones y
cambios de tempo.`
	default:
		return fmt.Sprintf(`Identifica la canción a partir de esta descripción libre.
Puede contener fragmentos de letra, contexto situacional ("sonaba en..."), o
una descripción del estilo:

%q`, text)
	}
}
