package canon

import (
	"testing"
)

func TestCanonicalize_SortsKeysRecursively(t *testing.T) {
	v := map[string]any{
		"b": 1,
		"a": []any{
			map[string]any{"z": true, "y": nil},
			"x",
		},
		"c": map[string]any{"d": "e", "c": 2.5},
	}

	got, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := `{"a":[{"y":null,"z":true},"x"],"b":1,"c":{"c":2.5,"d":"e"}}`
	if got != want {
		t.Errorf("Canonicalize = %s, want %s", got, want)
	}
}

func TestCanonicalize_ArraysKeepOrder(t *testing.T) {
	a, _ := Canonicalize([]any{"one", "two"})
	b, _ := Canonicalize([]any{"two", "one"})
	if a == b {
		t.Errorf("array order must be significant, both = %s", a)
	}
}

func TestCanonicalize_NoHTMLEscaping(t *testing.T) {
	got, err := Canonicalize(map[string]any{"pattern": "<name>&<ext>"})
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"pattern":"<name>&<ext>"}` {
		t.Errorf("got %s", got)
	}
}

func TestCanonicalize_UnsupportedValue(t *testing.T) {
	if _, err := Canonicalize(map[string]any{"ch": make(chan int)}); err == nil {
		t.Error("expected error for channel value")
	}
}

func TestContentHash_OrderIndependent(t *testing.T) {
	d1 := map[string]any{
		"name": "Echo",
		"pipeline": []any{
			map[string]any{"op": "resize", "args": map[string]any{"w": 100, "h": 50}},
		},
	}
	d2 := map[string]any{
		"pipeline": []any{
			map[string]any{"args": map[string]any{"h": 50, "w": 100}, "op": "resize"},
		},
		"name": "Echo",
	}

	h1, err := ContentHash(d1)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := ContentHash(d2)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hashes differ: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("sha256 hex length = %d, want 64", len(h1))
	}
}

func TestContentHash_CaseSensitiveValues(t *testing.T) {
	h1, _ := ContentHash(map[string]any{"name": "Echo"})
	h2, _ := ContentHash(map[string]any{"name": "echo"})
	if h1 == h2 {
		t.Error("values differing only in case must hash differently")
	}
}

func TestHasher_RollingFallback(t *testing.T) {
	h := Hasher{}
	a, err := h.Hash(map[string]any{"b": 1, "a": 2})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := h.Hash(map[string]any{"a": 2, "b": 1})
	if a != b {
		t.Errorf("fallback not order independent: %s vs %s", a, b)
	}
	if len(a) != 8 {
		t.Errorf("fallback length = %d, want 8", len(a))
	}
	if !IsHash(a) {
		t.Errorf("IsHash(%q) = false", a)
	}
}

func TestRolling32_KnownValues(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "00000000"},
		{"a", "00000061"},
		{"ab", "00000c21"}, // 97*31 + 98
	}
	for _, tt := range tests {
		if got := Rolling32(tt.in); got != tt.want {
			t.Errorf("Rolling32(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestIsHash(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"deadbeef", true},
		{"DEADBEEF", false},
		{"xyz", false},
		{"", false},
		{"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", true},
	}
	for _, tt := range tests {
		if got := IsHash(tt.in); got != tt.want {
			t.Errorf("IsHash(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
