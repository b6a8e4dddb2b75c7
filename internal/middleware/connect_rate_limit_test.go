package middleware

import (
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

func TestConnectRateLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Post("/session/connect", ConnectRateLimit(cache, 2), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	want := []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}
	for i, code := range want {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/session/connect", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != code {
			t.Fatalf("attempt %d: expected %d got %d", i+1, code, resp.StatusCode)
		}
	}
	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one counter key, got %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl <= 0 {
		t.Fatalf("expected counter to expire, ttl %s", ttl)
	}
}

func TestConnectRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Post("/session/connect", ConnectRateLimit(nil, 1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/session/connect", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected pass-through, got %d", resp.StatusCode)
		}
	}
}
