package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// KeyParams identifies one cacheable backend request.
type KeyParams struct {
	Method string
	Path   string
	Params map[string]string

	// Scope separates entries of different users or backends.
	Scope string
}

// GenerateKey returns a stable hex key for params. Parameter order does not
// matter and method case is ignored.
func GenerateKey(params KeyParams) string {
	keys := make([]string, 0, len(params.Params))
	for k := range params.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(strings.ToUpper(params.Method))
	b.WriteByte(' ')
	b.WriteString(params.Path)
	b.WriteByte('?')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params.Params[k])
	}
	b.WriteByte('#')
	b.WriteString(params.Scope)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
