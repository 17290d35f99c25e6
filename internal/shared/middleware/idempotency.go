package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	"github.com/seedai/server/internal/shared/response"
)

const (
	// IdempotencyKeyHeader carries the caller's idempotency key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader marks a response served from the idempotency store.
	IdempotentReplayHeader = "Idempotent-Replayed"

	idempotencyKeyPrefix  = "seedai:idempotency:"
	defaultIdempotencyTTL = 24 * time.Hour
	idempotencyLockTTL    = 2 * time.Minute
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response of a POST carrying an
// Idempotency-Key instead of submitting the same generation twice.
// It is a pass-through when client is nil.
func Idempotency(client goredis.UniversalClient, ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if client == nil || c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storeKey := idempotencyStoreKey(c, key)

		if stored, ok := loadResponse(ctx, client, storeKey); ok {
			c.Header(IdempotentReplayHeader, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		lockKey := storeKey + ":lock"
		locked, err := client.SetNX(ctx, lockKey, GetRequestID(c), idempotencyLockTTL).Result()
		if err != nil {
			// Store unavailable: serve the request unguarded.
			c.Next()
			return
		}
		if !locked {
			c.AbortWithStatusJSON(http.StatusConflict, response.ErrorResponse{
				Error: "a request with this idempotency key is already being processed",
				Code:  "REQUEST_IN_PROGRESS",
			})
			return
		}
		// The request context may be gone by the time we clean up.
		defer client.Del(context.WithoutCancel(ctx), lockKey)

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Server errors are not stored so the caller can retry.
		if status := w.Status(); status < http.StatusInternalServerError {
			data, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: w.Header().Get("Content-Type"),
				Body:        w.body.Bytes(),
			})
			if err == nil {
				client.Set(context.WithoutCancel(ctx), storeKey, data, ttl)
			}
		}
	}
}

func idempotencyStoreKey(c *gin.Context, key string) string {
	sum := sha256.Sum256([]byte(c.Request.Method + ":" + c.FullPath() + ":" + key))
	return idempotencyKeyPrefix + hex.EncodeToString(sum[:])
}

func loadResponse(ctx context.Context, client goredis.UniversalClient, key string) (*storedResponse, bool) {
	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, false
	}
	return &stored, true
}
