// internal/pkg/querycache/key.go
package querycache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies one cached server read. The first element is the
// operation name, the rest are its parameters.
type Key []any

// K builds a Key from an operation name and parameters.
func K(operation string, params ...any) Key {
	k := make(Key, 0, len(params)+1)
	k = append(k, operation)
	return append(k, params...)
}

// Operation returns the operation name of the key, or "" for an empty key.
func (k Key) Operation() string {
	if len(k) == 0 {
		return ""
	}
	if s, ok := k[0].(string); ok {
		return s
	}
	return fmt.Sprint(k[0])
}

// String returns the canonical form used for map lookups.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = encodePart(v)
	}
	return strings.Join(parts, "\x1f")
}

// HasPrefix reports whether prefix matches the leading elements of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if encodePart(prefix[i]) != encodePart(k[i]) {
			return false
		}
	}
	return true
}

func encodePart(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
