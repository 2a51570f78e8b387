package wire

import "testing"

func TestKeyLess_SchemaOrdering(t *testing.T) {
	a := SchemaKey("apples", 1)
	b := SchemaKey("apples", 2)
	c := SchemaKey("bananas", 1)

	if !a.Less(b) {
		t.Error("expected (apples,1) < (apples,2)")
	}
	if !b.Less(c) {
		t.Error("expected (apples,2) < (bananas,1)")
	}
	if c.Less(a) {
		t.Error("expected (bananas,1) not < (apples,1)")
	}
}

func TestKeyLess_ConfigAbsentSubjectFirst(t *testing.T) {
	global := GlobalConfigKey()
	scoped := ConfigKey("users", true)

	if !global.Less(scoped) {
		t.Error("expected the cluster-wide default config key to sort first")
	}
	if scoped.Less(global) {
		t.Error("scoped config key must not sort before the global one")
	}
}

func TestSerializer_StableRoundTrip(t *testing.T) {
	s := JSONSerializer{}

	k := SchemaKey("customers", 3)
	v := NewSchemaValue("customers", 3, 42, `"string"`)

	kb1, vb1, err := s.Serialize(k, v)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	kb2, vb2, err := s.Serialize(k, v)
	if err != nil {
		t.Fatalf("serialize (again): %v", err)
	}
	if string(kb1) != string(kb2) || string(vb1) != string(vb2) {
		t.Fatal("expected byte-identical output for equal logical input")
	}

	gotK, gotV, err := s.Deserialize(kb1, vb1)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if gotK != k {
		t.Errorf("key round-trip mismatch: got %+v, want %+v", gotK, k)
	}
	if gotV != v {
		t.Errorf("value round-trip mismatch: got %+v, want %+v", gotV, v)
	}
}

func TestSerializer_NoopKeyCarriesNoValue(t *testing.T) {
	s := JSONSerializer{}
	kb, err := s.SerializeKey(NoopKeyValue())
	if err != nil {
		t.Fatalf("serialize noop key: %v", err)
	}
	gotK, gotV, err := s.Deserialize(kb, nil)
	if err != nil {
		t.Fatalf("deserialize noop key: %v", err)
	}
	if gotK.Kind != KeyKindNoop {
		t.Errorf("expected noop key, got %v", gotK.Kind)
	}
	if gotV != (Value{}) {
		t.Errorf("expected zero value for noop key, got %+v", gotV)
	}
}
