package models

import (
	"bytes"
	"encoding/json"
)

// CanonicalJSON serializes v the way the device firmware and the scanning app
// expect it: compact, field order as declared, no HTML escaping, no trailing newline.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
