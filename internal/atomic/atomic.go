// Package atomic wraps go.uber.org/atomic's scalar types with the JSON
// codec novarelay needs for them (base64 for byte slices), since the
// upstream types don't implement json.Marshaler/Unmarshaler themselves.
package atomic

import (
	"encoding/base64"
	"encoding/json"

	uatomic "go.uber.org/atomic"
)

// String is a lock-free string field.
type String struct{ uatomic.String }

// Bool is a lock-free bool field.
type Bool struct{ uatomic.Bool }

// Bytes is a lock-free []byte field that marshals as a base64 string.
type Bytes struct{ uatomic.Bytes }

// MarshalJSON encodes the wrapped []byte as a base64 string, or JSON null
// when nothing has been stored.
func (b *Bytes) MarshalJSON() ([]byte, error) {
	data := b.Load()
	if data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(data))
}

// UnmarshalJSON decodes a base64 string and stores the result.
func (b *Bytes) UnmarshalJSON(text []byte) error {
	var encoded string
	if err := json.Unmarshal(text, &encoded); err != nil {
		return err
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return err
	}
	b.Store(decoded)
	return nil
}
