package fetcher

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeAny decodes an arbitrary JSON document. Feed payloads vary in shape
// (bare arrays, GeoJSON envelopes, API result objects), so the record list
// is extracted afterwards by probing the decoded value.
func DecodeAny(r io.Reader) (any, error) {
	var data any
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, eris.Wrap(err, "json: decode document")
	}
	return data, nil
}

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}
