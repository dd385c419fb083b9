package api

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/fathima-sithara/inbox-service/internal/logger"
)

func TestRateLimiterBurst(t *testing.T) {
	l := NewRateLimiter(60, 2, logger.Nop())

	lim := l.limiterFor("203.0.113.7")
	require.True(t, lim.Allow())
	require.True(t, lim.Allow())
	require.False(t, lim.Allow(), "third request inside the window should be rejected")
}

func TestRateLimiterSeparateIPs(t *testing.T) {
	l := NewRateLimiter(60, 1, logger.Nop())

	require.True(t, l.limiterFor("203.0.113.1").Allow())
	require.True(t, l.limiterFor("203.0.113.2").Allow(), "a second IP has its own bucket")
}

func TestRateLimiterHandlerReturns429(t *testing.T) {
	l := NewRateLimiter(60, 2, logger.Nop())

	app := fiber.New()
	app.Get("/ping", l.Handler(), func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	for i := 0; i < 2; i++ {
		resp := doRequest(t, app, http.MethodGet, "/ping", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := doRequest(t, app, http.MethodGet, "/ping", "", "")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRateLimiterDisabledWhenZero(t *testing.T) {
	l := NewRateLimiter(0, 0, logger.Nop())

	lim := l.limiterFor("203.0.113.9")
	for i := 0; i < 50; i++ {
		require.True(t, lim.Allow())
	}
}
