package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"auction-house/internal/core/domain"
	"auction-house/internal/core/ports"
	"auction-house/pkg/apperror"
	"auction-house/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// HeaderIdempotencyKey lets clients retry deposits, bids, and withdrawals
	// safely.
	HeaderIdempotencyKey = "x-idempotency-key"

	// HeaderIdempotencyReplayed marks a memoized response.
	HeaderIdempotencyReplayed = "x-idempotency-replayed"

	idempotencyTTL = 24 * time.Hour
)

// storedResponse is the serialized (status, body) pair memoized per key.
type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// captureWriter buffers the response body so the first completion can be
// memoized.
type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency memoizes the first completed response for (key, scope) and
// replays it verbatim on retries. The scope is the route template, so the
// same key can be reused across different operations. Two layers back the
// check: a Redis fast path and the authoritative (key, scope) table with a
// pending marker.
func Idempotency(repo ports.IdempotencyRepository, cache ports.IdempotencyCache, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		scope := c.Request.Method + " " + c.FullPath()
		cacheKey := domain.BuildIdempotencyCacheKey(key, scope)

		// Layer 1: Redis fast path.
		cached, err := cache.Get(c.Request.Context(), cacheKey)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("idempotency cache read failed, falling through to DB")
		}
		if cached != nil {
			replay(c, cached, log)
			return
		}

		// Layer 2: authoritative table with pending marker.
		created, existing, err := repo.TryBegin(c.Request.Context(), key, scope)
		if err != nil {
			response.Error(c, apperror.InternalError(err))
			c.Abort()
			return
		}
		if !created {
			if existing.IsPending() {
				response.Error(c, apperror.ErrIdempotencyInProgress())
				c.Abort()
				return
			}
			replayRecord(c, existing)
			return
		}

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			// Release the marker so the client can retry.
			if err := repo.Delete(c.Request.Context(), key, scope); err != nil {
				log.Error().Err(err).Str("key", key).Msg("idempotency marker release failed")
			}
			return
		}

		body := writer.buf.Bytes()
		if err := repo.Finalize(c.Request.Context(), key, scope, status, body); err != nil {
			log.Error().Err(err).Str("key", key).Msg("idempotency finalize failed")
			return
		}

		stored, err := json.Marshal(storedResponse{Status: status, Body: body})
		if err == nil {
			if err := cache.Set(c.Request.Context(), cacheKey, stored, idempotencyTTL); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("idempotency cache write failed")
			}
		}
	}
}

// replay writes a cached (status, body) pair.
func replay(c *gin.Context, cached []byte, log zerolog.Logger) {
	var stored storedResponse
	if err := json.Unmarshal(cached, &stored); err != nil {
		log.Warn().Err(err).Msg("corrupt idempotency cache entry, processing fresh")
		c.Next()
		return
	}
	writeReplay(c, stored.Status, stored.Body)
}

func replayRecord(c *gin.Context, rec *domain.IdempotencyRecord) {
	writeReplay(c, rec.Status, rec.Response)
}

func writeReplay(c *gin.Context, status int, body []byte) {
	c.Header(HeaderIdempotencyReplayed, "true")
	c.Data(status, "application/json; charset=utf-8", body)
	c.Abort()
}
