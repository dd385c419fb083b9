package api

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/config"
	"github.com/fathima-sithara/inbox-service/internal/inbox"
	"github.com/fathima-sithara/inbox-service/internal/metrics"
	inboxws "github.com/fathima-sithara/inbox-service/internal/ws"
)

// NewServer assembles the fiber app: health and metrics open, the v1
// group and the websocket inbox behind bearer auth.
func NewServer(cfg *config.Config, store MessageStore, svc *inbox.Service, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: !cfg.App.Development()})
	app.Use(fiberlogger.New())

	h := NewHandlers(store, svc, log)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	auth := AuthMiddleware(cfg.App.JWTSecret)
	limiter := NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst, log)

	api := app.Group("/v1", limiter.Handler(), auth)
	api.Get("/inbox", h.getInbox)
	api.Post("/messages", h.sendMessage)
	api.Post("/messages/:msg_id/read", h.markRead)
	api.Get("/messages/:partner_id", h.getHistory)

	app.Get("/ws/inbox", auth, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/inbox", auth, websocket.New(inboxws.Handler(svc, log)))

	return app
}
