package services

import (
	"context"
	"fmt"
	"log"

	"shophub/internal/apperr"
	"shophub/internal/models"
	"shophub/internal/repositories"
)

// UserService manages customer profiles.
type UserService struct {
	repo repositories.UserRepository
}

// NewUserService creates a new UserService.
func NewUserService(repo repositories.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// UpdateAddress replaces the delivery address of a user. Only the owner or an admin may do so.
func (s *UserService) UpdateAddress(ctx context.Context, caller Caller, userID string, addr models.AddressUpdate) (*models.User, error) {
	if !caller.CanAccess(userID) {
		return nil, fmt.Errorf("%w: cannot update another user's address", apperr.ErrForbidden)
	}
	user, err := s.repo.UpdateAddress(ctx, userID, addr)
	if err != nil {
		return nil, err
	}
	log.Printf("Updated delivery address of user %s", userID)
	return user, nil
}
