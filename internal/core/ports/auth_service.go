package ports

import (
	"context"

	"github.com/verimail/verimail/internal/core/domain"
)

type AuthService interface {
	Signup(ctx context.Context, name, email, password string) (*domain.User, error)
	VerifyEmail(ctx context.Context, token string) (alreadyVerified bool, err error)
	Login(ctx context.Context, email, password string) (*domain.User, error)
}
