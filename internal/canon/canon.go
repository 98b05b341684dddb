// Package canon produces the canonical serialization and content hash of
// tool definitions.
//
// Canonical form is JSON with every object's keys sorted recursively
// (including objects nested inside arrays). Arrays keep their order.
// Two values that are deep-equal after key-order normalization always
// produce the same canonical string and therefore the same hash.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Hasher hashes canonical bytes. A nil Digest selects the 32-bit rolling
// fallback, so hashes can be 8 or 64 hex characters long.
type Hasher struct {
	Digest func([]byte) []byte
}

// Default uses SHA-256.
var Default = Hasher{Digest: sha256Sum}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// Canonicalize returns the key-sorted JSON serialization of v.
func Canonicalize(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canon: marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("canon: decode: %w", err)
	}

	var b bytes.Buffer
	if err := writeCanonical(&b, generic); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ContentHash hashes the canonical form of v with the default hasher.
func ContentHash(v any) (string, error) {
	return Default.Hash(v)
}

// Hash returns the lowercase hex digest of the canonical form of v.
func (h Hasher) Hash(v any) (string, error) {
	s, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	if h.Digest == nil {
		return Rolling32(s), nil
	}
	return hex.EncodeToString(h.Digest([]byte(s))), nil
}

// Rolling32 is the 32-bit rolling hash (h = h*31 + c over UTF-16 code
// units) rendered as 8 lowercase hex characters.
func Rolling32(s string) string {
	var h uint32
	for _, r := range s {
		if r >= 0x10000 {
			// Surrogate pair, matching UTF-16 iteration.
			r -= 0x10000
			h = h*31 + uint32(0xD800+(r>>10))
			h = h*31 + uint32(0xDC00+(r&0x3FF))
			continue
		}
		h = h*31 + uint32(r)
	}
	return fmt.Sprintf("%08x", h)
}

// IsHash reports whether s looks like a content hash from either hasher.
func IsHash(s string) bool {
	if len(s) != 8 && len(s) != sha256.Size*2 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func writeCanonical(b *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case json.Number:
		b.WriteString(t.String())
	case string:
		writeString(b, t)
	case []any:
		b.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, item); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeString(b, k)
			b.WriteByte(':')
			if err := writeCanonical(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	default:
		return fmt.Errorf("canon: unsupported value %T", v)
	}
	return nil
}

func writeString(b *bytes.Buffer, s string) {
	enc := json.NewEncoder(b)
	enc.SetEscapeHTML(false)
	// Encode appends a newline; strip it.
	_ = enc.Encode(s)
	b.Truncate(b.Len() - 1)
}
