package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/inbox-service/internal/inbox"
	"github.com/fathima-sithara/inbox-service/internal/models"
	"github.com/fathima-sithara/inbox-service/internal/repository"
)

const defaultPageSize = 50

// MessageStore is what the handlers need from the persistence layer.
type MessageStore interface {
	Insert(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
	MarkViewed(ctx context.Context, messageID, userID string) error
	ListByParticipant(ctx context.Context, userID string, limit int64) ([]models.Message, error)
	History(ctx context.Context, userID, partnerID string, limit int64) ([]models.Message, error)
}

type Handlers struct {
	store MessageStore
	svc   *inbox.Service
	log   *zap.SugaredLogger
}

func NewHandlers(store MessageStore, svc *inbox.Service, log *zap.SugaredLogger) *Handlers {
	return &Handlers{store: store, svc: svc, log: log}
}

type sendMessageReq struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

func (h *Handlers) sendMessage(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.ReceiverID == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "receiver_id and content are required"})
	}
	if req.ReceiverID == userID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot message yourself"})
	}

	msg, err := h.store.Insert(c.Context(), userID, req.ReceiverID, req.Content)
	if err != nil {
		h.log.Errorw("message insert failed", "sender_id", userID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not send message"})
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *Handlers) markRead(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	msgID := c.Params("msg_id")

	err := h.store.MarkViewed(c.Context(), msgID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "message not found"})
	}
	if err != nil {
		h.log.Errorw("mark read failed", "message_id", msgID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not mark read"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// getInbox is the pull-based counterpart of the websocket stream: one
// repository read folded through the same aggregation path.
func (h *Handlers) getInbox(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	msgs, err := h.store.ListByParticipant(c.Context(), userID, int64(c.QueryInt("limit", 500)))
	if err != nil {
		h.log.Errorw("inbox read failed", "user_id", userID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load inbox"})
	}
	summaries := h.svc.SnapshotOnce(c.Context(), userID, msgs)
	return c.JSON(fiber.Map{"conversations": summaries})
}

func (h *Handlers) getHistory(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	partnerID := c.Params("partner_id")

	msgs, err := h.store.History(c.Context(), userID, partnerID, int64(c.QueryInt("limit", defaultPageSize)))
	if err != nil {
		h.log.Errorw("history read failed", "user_id", userID, "partner_id", partnerID, "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load history"})
	}
	return c.JSON(fiber.Map{"messages": msgs})
}
