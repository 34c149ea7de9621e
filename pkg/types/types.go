// Package types defines the core data structures shared across galacticalc:
// challenge problems, interpreter output, and recorded solving attempts.
package types

// ExecutionMode selects which challenge endpoint a session starts against.
type ExecutionMode string

const (
	// ModeTest starts a practice challenge that does not count toward scoring.
	ModeTest ExecutionMode = "test"

	// ModeProd starts the scored challenge.
	ModeProd ExecutionMode = "prod"
)

// IsValid reports whether m is a known execution mode.
func (m ExecutionMode) IsValid() bool {
	return m == ModeTest || m == ModeProd
}

// Attribute names the interpreter is allowed to emit.
const (
	// Planet attributes
	AttrName           = "name"
	AttrRotationPeriod = "rotation_period"
	AttrOrbitalPeriod  = "orbital_period"
	AttrDiameter       = "diameter"
	AttrSurfaceWater   = "surface_water"
	AttrPopulation     = "population"

	// Character attributes
	AttrHeight    = "height"
	AttrMass      = "mass"
	AttrHomeworld = "homeworld"

	// Pokémon attributes
	AttrBaseExperience = "base_experience"
	AttrWeight         = "weight"
)

// Attributes returns the full attribute vocabulary in prompt order.
func Attributes() []string {
	return []string{
		AttrName, AttrRotationPeriod, AttrOrbitalPeriod, AttrDiameter, AttrSurfaceWater, AttrPopulation,
		AttrHeight, AttrMass, AttrHomeworld,
		AttrBaseExperience, AttrWeight,
	}
}

// IsValidAttribute reports whether attr belongs to the interpreter vocabulary.
func IsValidAttribute(attr string) bool {
	for _, a := range Attributes() {
		if a == attr {
			return true
		}
	}
	return false
}

// CompositeKey builds the "<entity>.<attribute>" key used to address a
// resolved value, both in formulas and in the value cache.
func CompositeKey(entity, attribute string) string {
	return entity + "." + attribute
}
