package canonhash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const Prefix = "sha256:"

// SumObject hashes the canonical JSON form of v. Structs are first
// flattened to maps so the digest depends on field names, not on
// declaration order.
func SumObject(v any) (string, []byte, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", nil, err
	}
	sum := sha256.Sum256(b)
	return Prefix + hex.EncodeToString(sum[:]), b, nil
}

// Canonical returns v encoded as JSON with object keys sorted at every level.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	// encoding/json writes map keys in sorted order.
	return json.Marshal(generic)
}

// Equal reports whether a and b hash to the same digest.
func Equal(a, b any) (bool, error) {
	ha, _, err := SumObject(a)
	if err != nil {
		return false, err
	}
	hb, _, err := SumObject(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}
