package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/denim-store/storefront/internal/auth"
	"github.com/denim-store/storefront/internal/metrics"
	"github.com/denim-store/storefront/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// bcrypt ignores everything past 72 bytes
const (
	minPasswordLen = 6
	maxPasswordLen = 72
)

var credentials = validator.New()

var (
	errInvalidCredentials = models.NewError(models.ErrUnauthorized, "Invalid email or password")
	errInvalidToken       = models.NewError(models.ErrUnauthorized, "Token is not valid")
)

// AccountService handles signup, login and session resolution
type AccountService struct {
	users   UserStore
	hasher  PasswordHasher
	tokens  TokenManager
	metrics *metrics.AppMetrics

	dummyOnce sync.Once
	dummyHash string
}

// NewAccountService creates a new account service
func NewAccountService(users UserStore, hasher PasswordHasher, tokens TokenManager, metrics *metrics.AppMetrics) *AccountService {
	return &AccountService{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		metrics: metrics,
	}
}

// Signup creates a customer account and returns a session for it
func (s *AccountService) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := checkCredentials(name, email, req.Password); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, name, email, req.Password, false)
	if err != nil {
		s.metrics.RecordAuthAttempt(ctx, "signup", "failure")
		return nil, err
	}
	s.metrics.RecordAuthAttempt(ctx, "signup", "success")
	log.Info().Int64("user_id", user.ID).Msg("user signed up")

	return s.session(user)
}

// Login checks credentials and returns a session. Unknown emails and wrong
// passwords fail identically.
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		// Spend the same bcrypt work as a real comparison
		_ = s.hasher.Verify(req.Password, s.fallbackHash())
		s.metrics.RecordAuthAttempt(ctx, "login", "failure")
		return nil, errInvalidCredentials
	}

	if err := s.hasher.Verify(req.Password, user.PasswordHash); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			log.Error().Err(err).Int64("user_id", user.ID).Msg("stored password hash unusable")
		}
		s.metrics.RecordAuthAttempt(ctx, "login", "failure")
		return nil, errInvalidCredentials
	}

	s.metrics.RecordAuthAttempt(ctx, "login", "success")
	return s.session(user)
}

// CurrentUser returns the account for an authenticated user ID
func (s *AccountService) CurrentUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrNotFound, "User not found")
		}
		return nil, err
	}
	return user, nil
}

// Authenticate resolves a session token to its user
func (s *AccountService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, errInvalidToken
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// EnsureAdmin creates an administrator with the given credentials unless an
// account with that email already exists. Reports whether one was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := checkCredentials(name, email, password); err != nil {
		return false, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		if !existing.IsAdmin {
			log.Warn().Str("email", existing.Email).Msg("admin bootstrap email belongs to a non-admin account")
		}
		return false, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return false, err
	}

	user, err := s.createUser(ctx, name, email, password, true)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	log.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("admin user created")
	return true, nil
}

// checkCredentials applies the signup rules. Email uses the same validator
// as request bodies so display-name forms like "Bob <bob@x.com>" fail.
func checkCredentials(name, email, password string) error {
	if name == "" {
		return models.NewError(models.ErrInvalidRequest, "Name is required")
	}
	if err := credentials.Var(email, "required,email"); err != nil {
		return models.NewError(models.ErrInvalidRequest, "A valid email is required")
	}
	if len(password) < minPasswordLen {
		return models.NewError(models.ErrInvalidRequest, "Password must be at least 6 characters")
	}
	if len(password) > maxPasswordLen {
		return models.NewError(models.ErrInvalidRequest, "Password must be at most 72 bytes")
	}
	return nil
}

func (s *AccountService) createUser(ctx context.Context, name, email, password string, admin bool) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash, IsAdmin: admin}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.NewError(models.ErrConflict, "User already exists with this email")
		}
		return nil, err
	}
	return user, nil
}

func (s *AccountService) session(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

// fallbackHash is compared against when the email is unknown
func (s *AccountService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("denim-store-placeholder-password")
		if err != nil {
			log.Error().Err(err).Msg("failed to compute placeholder hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
