package wire

import (
	"encoding/json"
	"fmt"
)

// wireVersion is bumped when the envelope's field set changes in a way that
// is not backward compatible for readers pinned to an older version.
const wireVersion = 1

// keyEnvelope and valueEnvelope are the stable JSON shapes produced on the
// log. Fields are always emitted in struct declaration order by
// encoding/json, and omitempty is deliberately avoided on fields that
// participate in the logical identity of the record, so that two equal
// logical keys/values always marshal to byte-identical output — required
// by spec §6 ("the serializer must be stable").
type keyEnvelope struct {
	WireVersion int     `json:"wireVersion"`
	Kind        KeyKind `json:"kind"`
	Subject     string  `json:"subject"`
	HasSubject  bool    `json:"hasSubject"`
	Version     int32   `json:"version"`
}

type valueEnvelope struct {
	WireVersion int                `json:"wireVersion"`
	Kind        ValueKind          `json:"kind"`
	Subject     string             `json:"subject,omitempty"`
	Version     int32              `json:"version,omitempty"`
	ID          int32              `json:"id,omitempty"`
	Schema      string             `json:"schema,omitempty"`
	Deleted     bool               `json:"deleted,omitempty"`
	Level       CompatibilityLevel `json:"level,omitempty"`
}

// Serializer encodes/decodes Key/Value pairs to/from the bytes produced to
// and consumed from the log.
type Serializer interface {
	Serialize(k Key, v Value) (keyBytes, valueBytes []byte, err error)
	Deserialize(keyBytes, valueBytes []byte) (Key, Value, error)
	SerializeKey(k Key) (keyBytes []byte, err error)
}

// JSONSerializer is the default Serializer, a stable JSON envelope.
type JSONSerializer struct{}

// SerializeKey encodes a Key in isolation (used for NoopKey, which carries no value).
func (JSONSerializer) SerializeKey(k Key) ([]byte, error) {
	return json.Marshal(keyEnvelope{
		WireVersion: wireVersion,
		Kind:        k.Kind,
		Subject:     k.Subject,
		HasSubject:  k.HasSubject,
		Version:     k.Version,
	})
}

func (s JSONSerializer) Serialize(k Key, v Value) ([]byte, []byte, error) {
	kb, err := s.SerializeKey(k)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: serialize key: %w", err)
	}
	ve := valueEnvelope{
		WireVersion: wireVersion,
		Kind:        v.Kind,
		Subject:     v.Subject,
		Version:     v.Version,
		ID:          v.ID,
		Schema:      v.Schema,
		Deleted:     v.Deleted,
		Level:       v.Level,
	}
	vb, err := json.Marshal(ve)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: serialize value: %w", err)
	}
	return kb, vb, nil
}

func (JSONSerializer) Deserialize(keyBytes, valueBytes []byte) (Key, Value, error) {
	var ke keyEnvelope
	if err := json.Unmarshal(keyBytes, &ke); err != nil {
		return Key{}, Value{}, fmt.Errorf("wire: deserialize key: %w", err)
	}
	if ke.WireVersion > wireVersion {
		return Key{}, Value{}, fmt.Errorf("wire: key envelope version %d newer than supported %d", ke.WireVersion, wireVersion)
	}
	k := Key{Kind: ke.Kind, Subject: ke.Subject, HasSubject: ke.HasSubject, Version: ke.Version}

	if ke.Kind == KeyKindNoop || len(valueBytes) == 0 {
		return k, Value{}, nil
	}

	var ve valueEnvelope
	if err := json.Unmarshal(valueBytes, &ve); err != nil {
		return Key{}, Value{}, fmt.Errorf("wire: deserialize value: %w", err)
	}
	if ve.WireVersion > wireVersion {
		return Key{}, Value{}, fmt.Errorf("wire: value envelope version %d newer than supported %d", ve.WireVersion, wireVersion)
	}
	v := Value{
		Kind:    ve.Kind,
		Subject: ve.Subject,
		Version: ve.Version,
		ID:      ve.ID,
		Schema:  ve.Schema,
		Deleted: ve.Deleted,
		Level:   ve.Level,
	}
	return k, v, nil
}
