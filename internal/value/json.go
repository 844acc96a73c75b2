package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON implements json.Marshaler for Map.
func (m Map) MarshalJSON() ([]byte, error) {
	return json.Marshal(ToAny(m))
}

// UnmarshalJSON implements json.Unmarshaler for Map.
// Numbers always decode to Num, never to int.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	conv, err := MapFromAny(raw)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	*m = conv
	return nil
}
