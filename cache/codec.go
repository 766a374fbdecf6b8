package cache

import "encoding/json"

// encodeValue renders v as storage text: JSON of stringify(v), or of v.
func encodeValue[T any](v T, stringify func(T) any) (string, error) {
	var payload any = v
	if stringify != nil {
		payload = stringify(v)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeValue reverses encodeValue. Without parse the text decodes
// directly into T.
func decodeValue[T any](text string, parse func(any) (T, error)) (T, error) {
	var v T
	if parse == nil {
		err := json.Unmarshal([]byte(text), &v)
		return v, err
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return v, err
	}
	return parse(decoded)
}
