package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/verimail/verimail/internal/core/domain"
	"github.com/verimail/verimail/internal/core/ports"
)

type stubUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[string]*domain.User // keyed by id
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrEmailTaken
		}
	}
	copy := cloneUser(user)
	r.nextID++
	copy.ID = strings.Repeat("0", 23) + string(rune('0'+r.nextID))
	r.users[copy.ID] = cloneUser(copy)
	return copy, nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) SetVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Verified = true
	return nil
}

type recordingQueue struct {
	mu   sync.Mutex
	sent []ports.Mail
}

func (q *recordingQueue) Enqueue(m ports.Mail) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, m)
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sent)
}

func (q *recordingQueue) last() ports.Mail {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sent[len(q.sent)-1]
}

type stubThrottle struct {
	allow bool
	err   error
}

func (t *stubThrottle) Allow(context.Context, string) (bool, error) {
	return t.allow, t.err
}

func newTestService(repo *stubUserRepo, mailq *recordingQueue, throttle AlertThrottle) *AuthService {
	if throttle == nil {
		throttle = &stubThrottle{allow: true}
	}
	tokens := NewJWTTokenService("secret", time.Hour)
	hasher := NewBcryptHasher(bcrypt.MinCost)
	return NewAuthService(repo, tokens, hasher, mailq, throttle, "http://localhost:8080", zerolog.Nop())
}

func verifyTokenFromMail(t *testing.T, m ports.Mail) string {
	t.Helper()
	const marker = "/api/auth/verify/"
	idx := strings.Index(m.TextBody, marker)
	if idx < 0 {
		t.Fatalf("no verification link in mail body: %q", m.TextBody)
	}
	return strings.TrimSpace(m.TextBody[idx+len(marker):])
}

func TestAuthService_Signup_Success(t *testing.T) {
	repo := newStubUserRepo()
	mailq := &recordingQueue{}
	svc := newTestService(repo, mailq, nil)

	user, err := svc.Signup(context.Background(), "Alice", "alice@x.com", "secret123")
	if err != nil {
		t.Fatalf("Signup returned error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected assigned id")
	}
	if user.Verified {
		t.Fatalf("new accounts must start unverified")
	}
	if user.PasswordHash == "secret123" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}

	if mailq.count() != 1 {
		t.Fatalf("expected 1 verification mail, got %d", mailq.count())
	}
	m := mailq.last()
	if m.To != "alice@x.com" || m.Subject != "Verify your email" {
		t.Fatalf("unexpected mail: %+v", m)
	}
	if verifyTokenFromMail(t, m) == "" {
		t.Fatalf("verification link carries no token")
	}
}

func TestAuthService_Signup_Validation(t *testing.T) {
	repo := newStubUserRepo()
	mailq := &recordingQueue{}
	svc := newTestService(repo, mailq, nil)

	cases := [][3]string{
		{"", "a@x.com", "pw"},
		{"Alice", "", "pw"},
		{"Alice", "a@x.com", ""},
		{"   ", "a@x.com", "pw"},
		{"Alice", "a@x.com", "   "},
	}
	for _, c := range cases {
		if _, err := svc.Signup(context.Background(), c[0], c[1], c[2]); !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("Signup(%q,%q,%q): expected ErrInvalidInput, got %v", c[0], c[1], c[2], err)
		}
	}
	if mailq.count() != 0 {
		t.Fatalf("no mail should be sent for invalid signups")
	}
}

func TestAuthService_Signup_Duplicate(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &recordingQueue{}, nil)

	if _, err := svc.Signup(context.Background(), "Bob", "bob@x.com", "pw123"); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	if _, err := svc.Signup(context.Background(), "Bobby", "bob@x.com", "other"); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAuthService_Signup_ConcurrentSameEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &recordingQueue{}, nil)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.Signup(context.Background(), "Race", "race@x.com", "pw123")
			errs <- err
		}()
	}

	var created, conflicts int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			created++
		case errors.Is(err, domain.ErrEmailTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 || conflicts != 1 {
		t.Fatalf("expected exactly one winner, got created=%d conflicts=%d", created, conflicts)
	}
}

func TestAuthService_VerifyEmail_Idempotent(t *testing.T) {
	repo := newStubUserRepo()
	mailq := &recordingQueue{}
	svc := newTestService(repo, mailq, nil)

	if _, err := svc.Signup(context.Background(), "Alice", "alice@x.com", "secret123"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	token := verifyTokenFromMail(t, mailq.last())

	already, err := svc.VerifyEmail(context.Background(), token)
	if err != nil {
		t.Fatalf("first verify failed: %v", err)
	}
	if already {
		t.Fatalf("first verify should not report already verified")
	}

	already, err = svc.VerifyEmail(context.Background(), token)
	if err != nil {
		t.Fatalf("second verify failed: %v", err)
	}
	if !already {
		t.Fatalf("second verify should report already verified")
	}
}

func TestAuthService_VerifyEmail_BadToken(t *testing.T) {
	svc := newTestService(newStubUserRepo(), &recordingQueue{}, nil)

	if _, err := svc.VerifyEmail(context.Background(), "not-a-token"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthService_VerifyEmail_UnknownSubject(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &recordingQueue{}, nil)

	// Valid signature, but no such user. Must look exactly like a bad token.
	token, err := NewJWTTokenService("secret", time.Hour).Issue("ffffffffffffffffffffffff")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.VerifyEmail(context.Background(), token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthService_Login_Lifecycle(t *testing.T) {
	repo := newStubUserRepo()
	mailq := &recordingQueue{}
	svc := newTestService(repo, mailq, nil)

	if _, err := svc.Signup(context.Background(), "Alice", "alice@x.com", "secret123"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	token := verifyTokenFromMail(t, mailq.last())

	// Unverified accounts cannot log in, even with the right password.
	if _, err := svc.Login(context.Background(), "alice@x.com", "secret123"); !errors.Is(err, domain.ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified before verification, got %v", err)
	}

	if _, err := svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	user, err := svc.Login(context.Background(), "alice@x.com", "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.Email != "alice@x.com" || user.Name != "Alice" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.Login(context.Background(), "alice@x.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
}

func TestAuthService_Login_UnknownAndWrongPasswordUnified(t *testing.T) {
	repo := newStubUserRepo()
	mailq := &recordingQueue{}
	svc := newTestService(repo, mailq, nil)

	if _, err := svc.Signup(context.Background(), "Dave", "dave@x.com", "goodpass"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if _, err := svc.VerifyEmail(context.Background(), verifyTokenFromMail(t, mailq.last())); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	_, unknownErr := svc.Login(context.Background(), "ghost@x.com", "goodpass")
	_, wrongErr := svc.Login(context.Background(), "dave@x.com", "badpass")
	if !errors.Is(unknownErr, domain.ErrInvalidCredentials) || !errors.Is(wrongErr, domain.ErrInvalidCredentials) {
		t.Fatalf("expected unified ErrInvalidCredentials, got %v and %v", unknownErr, wrongErr)
	}
}

func TestAuthService_Login_Validation(t *testing.T) {
	svc := newTestService(newStubUserRepo(), &recordingQueue{}, nil)

	if _, err := svc.Login(context.Background(), "", "pw"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "a@x.com", "  "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func loginVerifiedUser(t *testing.T, svc *AuthService, mailq *recordingQueue, throttled int) {
	t.Helper()
	if _, err := svc.Signup(context.Background(), "Carol", "carol@x.com", "s3cret"); err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if _, err := svc.VerifyEmail(context.Background(), verifyTokenFromMail(t, mailq.last())); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	before := mailq.count()
	if _, err := svc.Login(context.Background(), "carol@x.com", "s3cret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if got := mailq.count() - before; got != throttled {
		t.Fatalf("expected %d login alerts, got %d", throttled, got)
	}
}

func TestAuthService_Login_AlertSent(t *testing.T) {
	repo := newStubUserRepo()
	mailq := &recordingQueue{}
	svc := newTestService(repo, mailq, &stubThrottle{allow: true})

	loginVerifiedUser(t, svc, mailq, 1)
	if m := mailq.last(); m.Subject != "New Login Alert" || m.To != "carol@x.com" {
		t.Fatalf("unexpected alert mail: %+v", m)
	}
}

func TestAuthService_Login_AlertThrottled(t *testing.T) {
	repo := newStubUserRepo()
	mailq := &recordingQueue{}
	svc := newTestService(repo, mailq, &stubThrottle{allow: false})

	loginVerifiedUser(t, svc, mailq, 0)
}

func TestAuthService_Login_ThrottleFailureStillSends(t *testing.T) {
	repo := newStubUserRepo()
	mailq := &recordingQueue{}
	svc := newTestService(repo, mailq, &stubThrottle{err: errors.New("redis down")})

	// A broken throttle must neither fail the login nor drop the alert.
	loginVerifiedUser(t, svc, mailq, 1)
}
