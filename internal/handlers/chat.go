package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"guidena-backend/internal/services"
)

// ChatHistoryHandler serves GET /api/chat/:receiverId: the full ordered
// message log between the caller and the receiver, senders resolved to
// public profile fields. This is what renders the conversation before the
// live websocket takes over. Fetching history never creates a
// conversation; a pair with no messages gets an empty list.
func ChatHistoryHandler(store services.ConversationStore, authz services.ConnectionChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		receiverID := c.Params("receiverId")
		if receiverID == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "receiverId is required"})
		}

		ok, err := authz.HasAcceptedConnection(c.Context(), userID, receiverID)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to verify mentorship connection"})
		}
		if !ok {
			return c.Status(http.StatusForbidden).JSON(fiber.Map{"error": "no accepted mentorship connection"})
		}

		resp, err := store.History(c.Context(), userID, receiverID)
		if err != nil {
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch chat"})
		}

		return c.JSON(fiber.Map{"data": resp})
	}
}
