// Package interpreter turns problem text into a structured interpretation
// (entities with their attributes, plus a formula) by asking an LLM behind a
// chat-completion proxy. Responses are extracted from free text, checked
// against a JSON schema, and normalized before being handed to the solver.
package interpreter

import (
	"fmt"
	"strings"

	"github.com/scrypster/galacticalc/pkg/types"
)

// attributeGroups lists the vocabulary in the order the prompt presents it.
var attributeGroups = [][]string{
	{types.AttrName, types.AttrRotationPeriod, types.AttrOrbitalPeriod, types.AttrDiameter, types.AttrSurfaceWater, types.AttrPopulation},
	{types.AttrHeight, types.AttrMass, types.AttrHomeworld},
	{types.AttrBaseExperience, types.AttrWeight},
}

// SystemPrompt is the developer message sent with every problem. The
// challenge problems are written in Spanish, so the prompt is too.
func SystemPrompt() string {
	var vocab strings.Builder
	for _, group := range attributeGroups {
		vocab.WriteString("- ")
		vocab.WriteString(strings.Join(group, ", "))
		vocab.WriteString("\n")
	}

	return fmt.Sprintf(`Eres un experto en analizar enunciados que involucran personajes, planetas de Star Wars y Pokémon. Tu tarea es estructurar el enunciado en dos partes:

1. Extrae las entidades mencionadas y sus atributos relevantes, listándolos en un objeto JSON llamado 'entities_attributes'. Cada clave debe ser el nombre exacto de la entidad y el valor una lista con los atributos necesarios, usando exclusivamente los siguientes nombres:
%s
2. Construye una fórmula matemática que represente el cálculo que se debe realizar, utilizando el formato Entidad.atributo.

Responde solo en formato JSON como el siguiente:
{
  "entities_attributes": {
    "Luke Skywalker": ["mass"],
    "Vulpix": ["base_experience"]
  },
  "formula": "Luke Skywalker.mass * Vulpix.base_experience"
}
`, vocab.String())
}
