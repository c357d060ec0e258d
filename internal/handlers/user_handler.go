package handlers

import (
	"log"

	"shophub/internal/middleware"
	"shophub/internal/models"
	"shophub/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// UserHandler handles profile updates.
type UserHandler struct {
	service  *services.UserService
	validate *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterStoreRoutes registers the profile routes.
func (h *UserHandler) RegisterStoreRoutes(store fiber.Router, requireAuth fiber.Handler) {
	store.Put("/users/address/:id", requireAuth, h.HandleUpdateAddress)
}

// HandleUpdateAddress replaces the delivery address of a user.
func (h *UserHandler) HandleUpdateAddress(c *fiber.Ctx) error {
	var req models.AddressUpdate
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	userID := c.Params("id")
	user, err := h.service.UpdateAddress(c.UserContext(), middleware.CallerFrom(c), userID, req)
	if err != nil {
		log.Printf("Error updating address of user %s: %v", userID, err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Address updated successfully",
		"data":    user,
	})
}
