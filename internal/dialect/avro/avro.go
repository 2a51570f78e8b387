// Package avro provides the default, runnable SchemaDialect implementation
// using github.com/hamba/avro/v2. It implements the common
// record-evolution rules; it is not a complete reimplementation of every
// Avro compatibility corner case, since SchemaDialect is explicitly an
// external collaborator per spec §2.
package avro

import (
	"fmt"

	"github.com/hamba/avro/v2"

	"github.com/schemacore/registry/internal/wire"
)

// Dialect implements dialect.Dialect for Avro schemas.
type Dialect struct{}

// New creates an Avro Dialect.
func New() *Dialect {
	return &Dialect{}
}

func (d *Dialect) Canonicalize(schemaText string) (string, error) {
	schema, err := avro.Parse(schemaText)
	if err != nil {
		return "", fmt.Errorf("avro: parse: %w", err)
	}
	return schema.String(), nil
}

// IsCompatible checks candidate against previous under level. BACKWARD
// compatibility means readers using candidate can read data written under
// previous, i.e. candidate is the reader and previous is the writer.
// FORWARD is the reverse. FULL requires both directions.
func (d *Dialect) IsCompatible(level wire.CompatibilityLevel, candidate, previous string) (bool, []string) {
	candidateSchema, err := avro.Parse(candidate)
	if err != nil {
		return false, []string{fmt.Sprintf("invalid candidate schema: %v", err)}
	}
	previousSchema, err := avro.Parse(previous)
	if err != nil {
		return false, []string{fmt.Sprintf("invalid previous schema: %v", err)}
	}

	switch level {
	case wire.CompatibilityNone:
		return true, nil
	case wire.CompatibilityBackward:
		return checkReadable(candidateSchema, previousSchema, "")
	case wire.CompatibilityForward:
		return checkReadable(previousSchema, candidateSchema, "")
	case wire.CompatibilityFull:
		ok1, msgs1 := checkReadable(candidateSchema, previousSchema, "")
		ok2, msgs2 := checkReadable(previousSchema, candidateSchema, "")
		return ok1 && ok2, append(msgs1, msgs2...)
	default:
		return false, []string{fmt.Sprintf("unknown compatibility level %q", level)}
	}
}

// checkReadable reports whether data written with writer can be read by reader.
func checkReadable(reader, writer avro.Schema, path string) (bool, []string) {
	if reader.Type() != writer.Type() {
		return false, []string{fmt.Sprintf("%s: type mismatch: reader has %s, writer has %s", pathOrRoot(path), reader.Type(), writer.Type())}
	}

	switch reader.Type() {
	case avro.Record:
		return checkRecord(reader.(*avro.RecordSchema), writer.(*avro.RecordSchema), path)
	case avro.Array:
		return checkReadable(reader.(*avro.ArraySchema).Items(), writer.(*avro.ArraySchema).Items(), appendPath(path, "[]"))
	case avro.Map:
		return checkReadable(reader.(*avro.MapSchema).Values(), writer.(*avro.MapSchema).Values(), appendPath(path, "{}"))
	case avro.Enum:
		re, we := reader.(*avro.EnumSchema), writer.(*avro.EnumSchema)
		return checkEnum(re, we, path)
	default:
		return true, nil
	}
}

func checkRecord(reader, writer *avro.RecordSchema, path string) (bool, []string) {
	if reader.FullName() != writer.FullName() {
		return false, []string{fmt.Sprintf("%s: record name mismatch: reader has %s, writer has %s", pathOrRoot(path), reader.FullName(), writer.FullName())}
	}

	writerFields := make(map[string]*avro.Field, len(writer.Fields()))
	for _, f := range writer.Fields() {
		writerFields[f.Name()] = f
	}

	var messages []string
	for _, rf := range reader.Fields() {
		fieldPath := appendPath(path, rf.Name())
		wf, ok := writerFields[rf.Name()]
		if !ok {
			if !rf.HasDefault() {
				messages = append(messages, fmt.Sprintf("%s: reader field %q has no default and is missing from writer", pathOrRoot(path), rf.Name()))
			}
			continue
		}
		if ok, msgs := checkReadable(rf.Type(), wf.Type(), fieldPath); !ok {
			messages = append(messages, msgs...)
		}
	}

	return len(messages) == 0, messages
}

func checkEnum(reader, writer *avro.EnumSchema, path string) (bool, []string) {
	if reader.FullName() != writer.FullName() {
		return false, []string{fmt.Sprintf("%s: enum name mismatch: reader has %s, writer has %s", pathOrRoot(path), reader.FullName(), writer.FullName())}
	}
	readerSymbols := make(map[string]bool, len(reader.Symbols()))
	for _, s := range reader.Symbols() {
		readerSymbols[s] = true
	}
	var messages []string
	for _, ws := range writer.Symbols() {
		if !readerSymbols[ws] {
			messages = append(messages, fmt.Sprintf("%s: writer symbol %q is missing from reader", pathOrRoot(path), ws))
		}
	}
	return len(messages) == 0, messages
}

func pathOrRoot(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

func appendPath(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "." + elem
}
