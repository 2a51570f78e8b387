// Package wire defines the on-log key/value representation for the schema
// registry and its total ordering over keys.
package wire

import "fmt"

// CompatibilityLevel is the configurable compatibility policy for a subject
// or the cluster-wide default.
type CompatibilityLevel string

const (
	CompatibilityNone     CompatibilityLevel = "NONE"
	CompatibilityBackward CompatibilityLevel = "BACKWARD"
	CompatibilityForward  CompatibilityLevel = "FORWARD"
	CompatibilityFull     CompatibilityLevel = "FULL"
)

// Valid reports whether the level is one of the four recognized values.
func (l CompatibilityLevel) Valid() bool {
	switch l {
	case CompatibilityNone, CompatibilityBackward, CompatibilityForward, CompatibilityFull:
		return true
	}
	return false
}

// KeyKind discriminates the tagged Key union.
type KeyKind uint8

const (
	// KeyKindSchema identifies a SchemaKey{subject, version}.
	KeyKindSchema KeyKind = iota + 1
	// KeyKindConfig identifies a ConfigKey{subject}, subject empty for cluster default.
	KeyKindConfig
	// KeyKindNoop identifies the liveness-probe key used by bootstrap.
	KeyKindNoop
)

func (k KeyKind) String() string {
	switch k {
	case KeyKindSchema:
		return "schema"
	case KeyKindConfig:
		return "config"
	case KeyKindNoop:
		return "noop"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Key is the tagged sum over SchemaKey / ConfigKey / NoopKey described in
// spec §3. Subject and Version are populated according to Kind; HasSubject
// distinguishes a ConfigKey with an absent (cluster-wide) subject from one
// with the empty string as an actual subject name — "" is never a legal
// subject name for a SchemaKey, so only ConfigKey needs the flag.
type Key struct {
	Kind       KeyKind
	Subject    string
	HasSubject bool
	Version    int32
}

// SchemaKey builds a Key identifying a specific subject/version pair.
func SchemaKey(subject string, version int32) Key {
	return Key{Kind: KeyKindSchema, Subject: subject, HasSubject: true, Version: version}
}

// ConfigKey builds a Key identifying a subject's (or, with subject=="",
// present=false, the cluster-wide default) compatibility configuration.
func ConfigKey(subject string, present bool) Key {
	return Key{Kind: KeyKindConfig, Subject: subject, HasSubject: present}
}

// GlobalConfigKey is the ConfigKey denoting the cluster-wide default.
func GlobalConfigKey() Key {
	return Key{Kind: KeyKindConfig, HasSubject: false}
}

// NoopKeyValue is the single NoopKey used for bootstrap liveness probes.
func NoopKeyValue() Key {
	return Key{Kind: KeyKindNoop}
}

// Less implements the total order from spec §3: NoopKey never participates
// in a range scan (it sorts after everything, and logstore never stores it
// in the view that getAll/getAllKeys read); SchemaKey orders by (subject asc, version asc);
// ConfigKey orders by subject, with the absent (cluster-wide) subject first.
func (k Key) Less(other Key) bool {
	if k.Kind != other.Kind {
		return k.Kind < other.Kind
	}
	switch k.Kind {
	case KeyKindSchema:
		if k.Subject != other.Subject {
			return k.Subject < other.Subject
		}
		return k.Version < other.Version
	case KeyKindConfig:
		if k.HasSubject != other.HasSubject {
			return !k.HasSubject // absent subject sorts first
		}
		return k.Subject < other.Subject
	default:
		return false
	}
}

// ValueKind discriminates the tagged Value union.
type ValueKind uint8

const (
	ValueKindSchema ValueKind = iota + 1
	ValueKindConfig
)

// Value is the tagged sum over SchemaValue / ConfigValue described in spec §3.
type Value struct {
	Kind ValueKind

	// SchemaValue fields.
	Subject string
	Version int32
	ID      int32
	Schema  string
	Deleted bool

	// ConfigValue fields.
	Level CompatibilityLevel
}

// NewSchemaValue builds a SchemaValue.
func NewSchemaValue(subject string, version, id int32, schema string) Value {
	return Value{Kind: ValueKindSchema, Subject: subject, Version: version, ID: id, Schema: schema}
}

// NewConfigValue builds a ConfigValue.
func NewConfigValue(level CompatibilityLevel) Value {
	return Value{Kind: ValueKindConfig, Level: level}
}
