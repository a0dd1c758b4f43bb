package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Idempotency keys are stored in a utf8mb4 unique index; keep them well under
// the 191-char index limit.
const maxIdempotencyKeyLen = 191

// NewIdempotencyKey builds a collision-resistant key for one logical operation:
// operation prefix, affected entity ids, a nanosecond timestamp and a random
// suffix. Retrying the same HTTP request must reuse the key generated for the
// first attempt; calling this again yields a new key and a new operation.
func NewIdempotencyKey(prefix string, entityIds ...string) string {
	parts := []string{prefix}
	parts = append(parts, entityIds...)
	parts = append(parts, strconv.FormatInt(time.Now().UnixNano(), 10), uuid.NewString())
	key := strings.Join(parts, ":")
	if len(key) > maxIdempotencyKeyLen {
		key = key[:maxIdempotencyKeyLen]
	}
	return key
}

// DeriveItemKey maps a batch key plus one (product, location) pair to a stable
// per-item key. A retried batch re-derives the same key for the same line, so
// no line is applied twice even when other lines of the retry differ.
func DeriveItemKey(batchKey string, productId int, locationId int) string {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", batchKey, productId, locationId)))
	return "blk-" + hex.EncodeToString(digest[:])[:48]
}

// NewBatchId identifies one bulk request in audit rows and result manifests.
func NewBatchId() string {
	return uuid.NewString()
}
