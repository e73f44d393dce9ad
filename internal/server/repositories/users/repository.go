// Package users stores account rows for the wellness app's registered users.
package users

import (
	"context"

	"github.com/verdalabs/wellspring/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
