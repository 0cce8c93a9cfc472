package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/verimail/verimail/internal/core/domain"
	"github.com/verimail/verimail/internal/core/ports"
)

// AlertThrottle limits how often a login alert is sent to one recipient.
type AlertThrottle interface {
	Allow(ctx context.Context, email string) (bool, error)
}

// AuthService implements the signup → verify → login lifecycle.
type AuthService struct {
	repo     ports.UserRepository
	tokens   ports.TokenService
	hasher   ports.PasswordHasher
	mail     ports.MailQueue
	throttle AlertThrottle
	baseURL  string
	log      zerolog.Logger
}

func NewAuthService(
	repo ports.UserRepository,
	tokens ports.TokenService,
	hasher ports.PasswordHasher,
	mail ports.MailQueue,
	throttle AlertThrottle,
	baseURL string,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		repo:     repo,
		tokens:   tokens,
		hasher:   hasher,
		mail:     mail,
		throttle: throttle,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
	}
}

// Signup creates an unverified account and queues a verification email.
// The email lookup is advisory; the store's unique index is the
// authoritative guard against concurrent signups for the same address.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, domain.ErrInvalidInput
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("signup lookup: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("signup hash: %w", err)
	}

	now := time.Now().UTC()
	created, err := s.repo.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(created.ID)
	if err != nil {
		return nil, fmt.Errorf("signup token: %w", err)
	}

	verifyURL := fmt.Sprintf("%s/api/auth/verify/%s", s.baseURL, token)
	s.mail.Enqueue(ports.Mail{
		To:       email,
		Subject:  "Verify your email",
		TextBody: fmt.Sprintf("Hello %s, please verify your email: %s", name, verifyURL),
		HTMLBody: fmt.Sprintf(
			`<h1>Email Verification</h1><p>Hi %s,</p><p>Click <a href=%q>here</a> to verify your email.</p>`,
			name, verifyURL,
		),
	})

	return created, nil
}

// VerifyEmail confirms ownership of the address a token was issued for.
// It is idempotent: verifying an already-verified account succeeds and
// reports alreadyVerified without touching the record. An unknown subject
// is indistinguishable from a bad token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (bool, error) {
	subject, err := s.tokens.Validate(token)
	if err != nil {
		return false, err
	}

	user, err := s.repo.FindByID(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, domain.ErrTokenInvalid
		}
		return false, fmt.Errorf("verify lookup: %w", err)
	}

	if user.Verified {
		return true, nil
	}

	if err := s.repo.SetVerified(ctx, user.ID); err != nil {
		return false, fmt.Errorf("verify persist: %w", err)
	}
	return false, nil
}

// Login authenticates an email/password pair. Unknown email and wrong
// password both fail with ErrInvalidCredentials so the response carries no
// account-existence signal. The verification check happens before the
// password compare, matching the long-standing external behavior.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return nil, domain.ErrInvalidInput
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login lookup: %w", err)
	}

	if !user.Verified {
		return nil, domain.ErrNotVerified
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("login verify: %w", err)
	}
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	s.sendLoginAlert(ctx, user)
	return user, nil
}

// sendLoginAlert queues the new-login notification, at most one per
// recipient per throttle window. Failures never surface to the caller.
func (s *AuthService) sendLoginAlert(ctx context.Context, user *domain.User) {
	allowed, err := s.throttle.Allow(ctx, user.Email)
	if err != nil {
		s.log.Warn().Err(err).Str("email", user.Email).Msg("alert throttle check failed, sending anyway")
		allowed = true
	}
	if !allowed {
		s.log.Debug().Str("email", user.Email).Msg("login alert throttled")
		return
	}

	s.mail.Enqueue(ports.Mail{
		To:       user.Email,
		Subject:  "New Login Alert",
		TextBody: fmt.Sprintf("Hello %s, you just logged in.", user.Name),
		HTMLBody: fmt.Sprintf(
			"<p>Hi <strong>%s</strong>, you just logged in at %s.</p>",
			user.Name, time.Now().UTC().Format(time.RFC1123),
		),
	})
}
