package store

// Row field accessors tolerant of either a Go-native-typed value (as
// memstore produces directly from Go literals) or a json.Unmarshal-decoded
// value (as badgerstore produces, where every JSON number decodes to
// float64 regardless of its original Go type). Cache packages should read
// Row fields through these helpers rather than asserting a concrete type
// directly, so they work unmodified against either Gateway implementation.

// Int64 reads an integer-valued field, accepting int64 or float64.
func (r Row) Int64(key string) int64 {
	switch v := r[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return int64(v)
	default:
		return 0
	}
}

// Float64 reads a float-valued field, accepting float64 or int64.
func (r Row) Float64(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// String reads a string-valued field.
func (r Row) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Bool reads a boolean-valued field.
func (r Row) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// NullableInt64 reads a field that may be absent or nil, returning
// (0, false) in that case.
func (r Row) NullableInt64(key string) (int64, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return 0, false
	}
	return r.Int64(key), true
}

// Bytes reads a raw JSON-text field, held either as a string or as a
// []byte, ready for json.Unmarshal by the caller.
func (r Row) Bytes(key string) []byte {
	switch v := r[key].(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	default:
		return nil
	}
}
