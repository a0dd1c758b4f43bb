package utils

import (
	"strings"
	"testing"
)

func TestDeriveItemKey_StablePerLine(t *testing.T) {
	key := DeriveItemKey("nightly-count-2026-02-14", 42, 7)

	if again := DeriveItemKey("nightly-count-2026-02-14", 42, 7); again != key {
		t.Fatalf("same batch and line must derive the same key: %s vs %s", key, again)
	}
	if !strings.HasPrefix(key, "blk-") {
		t.Fatalf("expected blk- prefix, got %s", key)
	}
	if len(key) > maxIdempotencyKeyLen {
		t.Fatalf("derived key too long for the unique index: %d chars", len(key))
	}

	cases := []struct {
		name  string
		other string
	}{
		{"different batch", DeriveItemKey("nightly-count-2026-02-15", 42, 7)},
		{"different product", DeriveItemKey("nightly-count-2026-02-14", 43, 7)},
		{"different location", DeriveItemKey("nightly-count-2026-02-14", 42, 8)},
	}
	for _, tc := range cases {
		if tc.other == key {
			t.Fatalf("%s must derive a different key", tc.name)
		}
	}
}

func TestNewIdempotencyKey_UniqueAndBounded(t *testing.T) {
	first := NewIdempotencyKey("damage", "vendor-1", "17")
	second := NewIdempotencyKey("damage", "vendor-1", "17")

	if first == second {
		t.Fatalf("two generated keys must differ: %s", first)
	}
	if !strings.HasPrefix(first, "damage:vendor-1:17:") {
		t.Fatalf("key must embed prefix and entity ids, got %s", first)
	}
	if len(first) > maxIdempotencyKeyLen {
		t.Fatalf("key exceeds index budget: %d chars", len(first))
	}

	long := NewIdempotencyKey("seed", strings.Repeat("x", 400))
	if len(long) != maxIdempotencyKeyLen {
		t.Fatalf("oversized key must truncate to %d chars, got %d", maxIdempotencyKeyLen, len(long))
	}
}
