package avro

import (
	"testing"

	"github.com/schemacore/registry/internal/wire"
)

const schemaV1 = `{"type":"record","name":"User","fields":[{"name":"id","type":"long"},{"name":"name","type":"string"}]}`

const schemaV2AddedOptional = `{"type":"record","name":"User","fields":[{"name":"id","type":"long"},{"name":"name","type":"string"},{"name":"nickname","type":"string","default":""}]}`

const schemaV3RemovedRequired = `{"type":"record","name":"User","fields":[{"name":"id","type":"long"}]}`

func TestCanonicalize_ParseError(t *testing.T) {
	d := New()
	if _, err := d.Canonicalize("not json"); err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestIsCompatible_Backward_AddingOptionalField(t *testing.T) {
	d := New()
	ok, msgs := d.IsCompatible(wire.CompatibilityBackward, schemaV2AddedOptional, schemaV1)
	if !ok {
		t.Fatalf("expected compatible, got messages: %v", msgs)
	}
}

func TestIsCompatible_Backward_RemovingRequiredField(t *testing.T) {
	d := New()
	ok, msgs := d.IsCompatible(wire.CompatibilityBackward, schemaV3RemovedRequired, schemaV1)
	if !ok {
		t.Fatalf("expected compatible: a reader on v3 ignores the name field v1 writers still send, got: %v", msgs)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no messages for a compatible pair, got: %v", msgs)
	}
}

func TestIsCompatible_None_AlwaysTrue(t *testing.T) {
	d := New()
	ok, _ := d.IsCompatible(wire.CompatibilityNone, schemaV3RemovedRequired, schemaV1)
	if !ok {
		t.Fatal("NONE level must always report compatible")
	}
}

func TestIsCompatible_Full_RequiresBothDirections(t *testing.T) {
	d := New()
	// v2 adds an optional field: backward-compatible (the v2 reader fills
	// nickname from its default) and forward-compatible (a v1 reader ignores
	// the unknown nickname field v2 writers send), so it passes FULL.
	ok, msgs := d.IsCompatible(wire.CompatibilityFull, schemaV2AddedOptional, schemaV1)
	if !ok {
		t.Fatalf("expected full compatibility, got: %v", msgs)
	}
}
