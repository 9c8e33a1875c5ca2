// Package codec is the JSON boundary of the wire protocol. Both ends of a
// connection encode and decode through it so error context stays uniform.
package codec

import (
	"encoding/json"
	"fmt"
)

// Encode marshals v into a raw message.
func Encode(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %T: %w", v, err)
	}
	return b, nil
}

// Decode unmarshals data into v. Unknown fields are ignored, so a newer
// peer can extend payloads without breaking an older one.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: decode into %T: %w", v, err)
	}
	return nil
}
