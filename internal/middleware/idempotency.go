package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	idempotencyOpTimeout = 2 * time.Second
)

// replayRecord is the first response for a key plus a digest of the request
// body it answered.
type replayRecord struct {
	BodyDigest string            `json:"bodyDigest"`
	Status     int               `json:"status"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers"`
}

// Idempotency replays the first successful response for a repeated
// Idempotency-Key header, so a retried signup or resend does not mail a
// second code. Requests without the header pass through. Reusing a key with a
// different body is rejected. Session cookies are never stored or replayed.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions {
			return c.Next()
		}
		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return c.Next()
		}

		cacheKey := idempotencyPrefix + method + ":" + c.Path() + ":" + key
		digest := bodyDigest(c.Body())
		log := logger.With(slog.String("idempotency_key", key))

		ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
		defer cancel()

		raw, err := cache.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			return replay(c, raw, digest, log)
		case !errors.Is(err, redis.Nil):
			log.Error("idempotency lookup failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}

		reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
		if err != nil {
			log.Error("idempotency reservation failed", slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency reservation failure")
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			release(cache, cacheKey)
			return err
		}
		if c.Response().StatusCode() >= fiber.StatusBadRequest {
			release(cache, cacheKey)
			return nil
		}

		payload, err := json.Marshal(capture(c, digest))
		if err == nil {
			persistCtx, persistCancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
			defer persistCancel()
			err = cache.Set(persistCtx, cacheKey, payload, ttl).Err()
		}
		if err != nil {
			// The response is still sent; only the replay record is lost.
			log.Error("failed to persist idempotent response", slog.Any("error", err))
			release(cache, cacheKey)
		}
		return nil
	}
}

func replay(c *fiber.Ctx, raw, digest string, log *slog.Logger) error {
	if raw == inProgressMarker {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}
	var rec replayRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		log.Warn("failed to decode stored idempotent response", slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "duplicate request")
	}
	if rec.BodyDigest != digest {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key was already used with a different request")
	}
	for name, value := range rec.Headers {
		c.Set(name, value)
	}
	return c.Status(rec.Status).SendString(rec.Body)
}

func capture(c *fiber.Ctx, digest string) replayRecord {
	rec := replayRecord{
		BodyDigest: digest,
		Status:     c.Response().StatusCode(),
		Body:       string(c.Response().Body()),
		Headers:    map[string]string{},
	}
	c.Response().Header.VisitAll(func(k, v []byte) {
		name := string(k)
		if !skipReplayHeader(name) {
			rec.Headers[name] = string(v)
		}
	})
	return rec
}

func release(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey)
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func skipReplayHeader(name string) bool {
	return strings.EqualFold(name, fiber.HeaderContentLength) ||
		strings.EqualFold(name, fiber.HeaderSetCookie) ||
		strings.EqualFold(name, requestIDHeader)
}
