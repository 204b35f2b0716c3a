package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keyxmakerx/gatehouse/internal/apperror"
	"github.com/keyxmakerx/gatehouse/internal/metrics"
	"github.com/keyxmakerx/gatehouse/internal/plugins/sessions"
)

// Metric operation labels.
const (
	opRegister = "register"
	opLogin    = "login"
)

// Notifier queues outbound mail. smtp.Outbox implements it.
type Notifier interface {
	Enqueue(to, subject, body string)
}

// AuthService defines the business logic contract for authentication.
// Handlers call these methods; they never touch the repository directly.
type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	Login(ctx context.Context, input LoginInput) (handle string, user *User, err error)
	CurrentSession(ctx context.Context, handle string) (*sessions.Session, error)
}

// authService implements AuthService.
type authService struct {
	repo     UserRepository
	hasher   PasswordHasher
	sessions *sessions.Manager
	notifier Notifier
	baseURL  string

	// dummyHash is checked against when the email is unknown, so that
	// failure pays the same hashing cost as a wrong password.
	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, hasher PasswordHasher, sm *sessions.Manager, notifier Notifier, baseURL string) AuthService {
	return &authService{
		repo:     repo,
		hasher:   hasher,
		sessions: sm,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Register creates a new user account. The existence check only saves a
// hash on the common path; the store's unique constraint decides duplicates.
// The welcome email is queued after the insert and can't fail registration.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := strings.TrimSpace(input.Email)

	if email == "" || input.Password == "" {
		metrics.RecordAuth(opRegister, metrics.OutcomeValidation)
		return nil, apperror.NewValidation(msgRequired)
	}
	if len(input.Password) > maxPasswordBytes {
		metrics.RecordAuth(opRegister, metrics.OutcomeValidation)
		return nil, apperror.NewValidation(msgPasswordTooLong)
	}
	if input.Password != input.ConfirmPassword {
		metrics.RecordAuth(opRegister, metrics.OutcomeValidation)
		return nil, apperror.NewValidation(msgPasswordMismatch)
	}

	_, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		metrics.RecordAuth(opRegister, metrics.OutcomeConflict)
		return nil, apperror.NewConflict(msgEmailTaken)
	case !apperror.IsNotFound(err):
		metrics.RecordAuth(opRegister, metrics.OutcomeError)
		return nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		metrics.RecordAuth(opRegister, metrics.OutcomeError)
		return nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			metrics.RecordAuth(opRegister, metrics.OutcomeConflict)
			return nil, apperror.NewConflict(msgEmailTaken)
		}
		metrics.RecordAuth(opRegister, metrics.OutcomeError)
		return nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	slog.Info("user registered", slog.String("user_id", user.ID))
	metrics.RecordAuth(opRegister, metrics.OutcomeSuccess)

	if s.notifier != nil {
		s.notifier.Enqueue(user.Email, welcomeSubject, welcomeBody(s.baseURL, user.Email))
	}

	return user, nil
}

// Login authenticates a user by email and password and opens a session.
// Unknown email and wrong password produce the same error.
func (s *authService) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" || input.Password == "" || len(input.Password) > maxPasswordBytes {
		metrics.RecordAuth(opLogin, metrics.OutcomeInvalid)
		return "", nil, apperror.NewUnauthorized(msgInvalidCredential)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if apperror.IsNotFound(err) {
			s.verifyDummy(input.Password)
			metrics.RecordAuth(opLogin, metrics.OutcomeInvalid)
			return "", nil, apperror.NewUnauthorized(msgInvalidCredential)
		}
		metrics.RecordAuth(opLogin, metrics.OutcomeError)
		return "", nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		metrics.RecordAuth(opLogin, metrics.OutcomeInvalid)
		return "", nil, apperror.NewUnauthorized(msgInvalidCredential)
	}

	handle, err := s.sessions.Create(ctx, user.ID, user.Email)
	if err != nil {
		metrics.RecordAuth(opLogin, metrics.OutcomeError)
		return "", nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	metrics.RecordAuth(opLogin, metrics.OutcomeSuccess)

	return handle, user, nil
}

// verifyDummy runs one hash comparison that can never succeed.
func (s *authService) verifyDummy(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("gatehouse-unknown-account")
		if err != nil {
			slog.Warn("dummy hash unavailable", slog.Any("error", err))
			return
		}
		s.dummyHash = hash
	})
	s.hasher.Verify(password, s.dummyHash)
}

// CurrentSession resolves a cookie handle. Returns sessions.ErrNoSession for
// anonymous requests and an internal error when the store is unreachable.
func (s *authService) CurrentSession(ctx context.Context, handle string) (*sessions.Session, error) {
	if handle == "" {
		return nil, sessions.ErrNoSession
	}
	session, err := s.sessions.Lookup(ctx, handle)
	if err != nil {
		if errors.Is(err, sessions.ErrNoSession) {
			return nil, err
		}
		return nil, apperror.NewInternal(fmt.Errorf("looking up session: %w", err))
	}
	return session, nil
}

const welcomeSubject = "Welcome to Gatehouse"

func welcomeBody(baseURL, email string) string {
	return "Hello,\n\n" +
		"An account for " + email + " has been created. You can log in at " + baseURL + "/login.\n\n" +
		"If you did not register, you can ignore this message.\n"
}
