package domain

import "time"

// IdempotencyStatusPending marks a record whose request is still in flight.
const IdempotencyStatusPending = 0

// IdempotencyRecord memoizes the first completed response for (key, scope).
// Status 0 is a pending marker; any other value is the finalized HTTP status
// whose Response is replayed verbatim on retries.
type IdempotencyRecord struct {
	Key       string    `json:"key"`
	Scope     string    `json:"scope"`
	Status    int       `json:"status"`
	Response  []byte    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPending returns true while the first request for this key is in flight.
func (r *IdempotencyRecord) IsPending() bool {
	return r.Status == IdempotencyStatusPending
}

// BuildIdempotencyCacheKey constructs the cache key for a (key, scope) pair.
func BuildIdempotencyCacheKey(key, scope string) string {
	return scope + ":" + key
}
