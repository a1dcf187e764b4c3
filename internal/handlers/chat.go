package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/satecha/satecha/internal/chat"
	"github.com/satecha/satecha/pkg/logger"
)

type ChatHandler struct {
	Responder chat.Responder
}

func NewChatHandler(responder chat.Responder) *ChatHandler {
	return &ChatHandler{Responder: responder}
}

type chatRequest struct {
	Message string `json:"message"`
}

// Send answers in the chat reply shape rather than the API envelope.
func (h *ChatHandler) Send(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(chat.Reply{Success: false, Error: "invalid request body"})
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(chat.Reply{Success: false, Error: "message is required"})
	}

	answer, err := h.Responder.Respond(c.UserContext(), message)
	if err != nil {
		logger.Error("chat_respond_failed", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(chat.Reply{Success: false, Error: "failed to answer message"})
	}
	return c.Status(fiber.StatusOK).JSON(chat.Reply{Message: answer, Success: true})
}
