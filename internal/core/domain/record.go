package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is one normalized product/item. Values are strings, nested
// Records (map[string]any), slices of values, or the derived int64 id of
// delimited records.
type Record map[string]any

// Family names the source format family of a batch. Each family is
// persisted to its own collection.
type Family string

const (
	FamilyDelimited    Family = "delimited"
	FamilyHierarchical Family = "hierarchical"
)

// KeyString renders a dedup key value in the form used for store lookups.
// Only scalar values can act as keys.
func KeyString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case int:
		return strconv.Itoa(val), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case json.Number:
		return val.String(), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case nil:
		return "", fmt.Errorf("key value is null")
	default:
		return "", fmt.Errorf("key value of type %T is not a scalar", v)
	}
}
