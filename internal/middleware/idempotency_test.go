package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/coffee_atm/internal/logging"
)

type counter struct{ purchases, deposits int }

func setupTestApp(t *testing.T) (*fiber.App, *counter, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	calls := &counter{}
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/purchases", func(c *fiber.Ctx) error {
		calls.purchases++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"n": calls.purchases})
	})
	app.Post("/deposits", func(c *fiber.Ctx) error {
		calls.deposits++
		if calls.deposits == 1 {
			return fiber.NewError(fiber.StatusConflict, "busy")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"n": calls.deposits})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}
	return app, calls, cleanup
}

func post(t *testing.T, app *fiber.App, path, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	post(t, app, "/purchases", "")
	post(t, app, "/purchases", "")
	if calls.purchases != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls.purchases)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	status, first := post(t, app, "/purchases", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	// the retry must not reach the handler again
	status, second := post(t, app, "/purchases", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if second != first {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if calls.purchases != 1 {
		t.Fatalf("expected handler to run once, got %d", calls.purchases)
	}
}

func TestIdempotencyRejectsKeyReuseAcrossRoutes(t *testing.T) {
	app, _, cleanup := setupTestApp(t)
	defer cleanup()

	post(t, app, "/purchases", "shared")
	if status, _ := post(t, app, "/deposits", "shared"); status != fiber.StatusUnprocessableEntity {
		t.Fatalf("expected %d got %d", fiber.StatusUnprocessableEntity, status)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	app, calls, cleanup := setupTestApp(t)
	defer cleanup()

	if status, _ := post(t, app, "/deposits", "retry-me"); status != fiber.StatusConflict {
		t.Fatalf("expected first attempt to fail with %d, got %d", fiber.StatusConflict, status)
	}
	if status, _ := post(t, app, "/deposits", "retry-me"); status != fiber.StatusOK {
		t.Fatalf("expected retry to run, got %d", status)
	}
	if calls.deposits != 2 {
		t.Fatalf("expected 2 handler calls, got %d", calls.deposits)
	}
}
