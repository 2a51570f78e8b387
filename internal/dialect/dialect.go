// Package dialect defines SchemaDialect, the external collaborator spec §2
// abstracts the format-specific schema parser and compatibility checker
// behind: canonicalization and compatibility decisions never live in the
// registry core itself.
package dialect

import "github.com/schemacore/registry/internal/wire"

// Dialect parses a schema string into canonical form and decides
// compatibility of a new schema against an older one under a named policy.
type Dialect interface {
	// Canonicalize returns the normalized textual form of schemaText.
	// Equal schemas (under this dialect's notion of equality) must
	// produce identical canonical forms. A parse failure is reported as
	// an error, which the registry maps to ErrInvalidSchema.
	Canonicalize(schemaText string) (string, error)

	// IsCompatible reports whether candidate (already canonicalized) may
	// follow previous (the latest registered version) under level.
	// messages gives human-readable reasons when ok is false.
	IsCompatible(level wire.CompatibilityLevel, candidate, previous string) (ok bool, messages []string)
}
