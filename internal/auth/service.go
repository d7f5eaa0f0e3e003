package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meltforce/fitcourse/internal/models"
)

// MinPasswordLength is the shortest password accepted on sign-up and change.
const MinPasswordLength = 6

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Claims is the token payload. The subject carries the uid.
type Claims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

// Service registers accounts, checks passwords and issues tokens.
type Service struct {
	accounts Accounts
	secret   []byte
	ttl      time.Duration
	cost     int
	now      func() time.Time
	log      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) { s.cost = cost }
}

// WithServiceClock replaces time.Now.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(accounts Accounts, secret string, log *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		accounts: accounts,
		secret:   []byte(secret),
		ttl:      DefaultTokenTTL,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		log:      log,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// Register creates an account and returns its identity with a fresh token.
func (s *Service) Register(ctx context.Context, email, password string) (*models.Identity, string, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if err := validatePassword(password); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}
	a := Account{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, "", err
	}
	s.log.Info("account created", "uid", a.UID)

	return s.issue(a)
}

// Login checks the password and returns the identity with a fresh token.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Identity, string, error) {
	a, err := s.accounts.ByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, "", err
	}
	if a == nil {
		return nil, "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	return s.issue(*a)
}

func (s *Service) issue(a Account) (*models.Identity, string, error) {
	now := s.now()
	claims := &Claims{
		Email: a.Email,
		StandardClaims: jwt.StandardClaims{
			Subject:   a.UID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(s.ttl).Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, "", fmt.Errorf("signing token: %w", err)
	}
	return &models.Identity{UID: a.UID, Email: a.Email}, token, nil
}

// Verify parses a token and returns the identity it was issued for.
func (s *Service) Verify(token string) (*models.Identity, error) {
	claims := &Claims{}
	parser := &jwt.Parser{SkipClaimsValidation: true}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	// Expiry is checked against the injected clock.
	if !claims.VerifyExpiresAt(s.now().Unix(), true) || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &models.Identity{UID: claims.Subject, Email: claims.Email}, nil
}

// ChangePassword replaces the password of uid.
func (s *Service) ChangePassword(ctx context.Context, uid, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.accounts.UpdatePassword(ctx, uid, hash)
}

// RequestPasswordReset records a reset request for email. There is no mail
// delivery; the request is logged so an operator can act on it.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	a, err := s.accounts.ByEmail(ctx, email)
	if err != nil {
		return err
	}
	if a == nil {
		return ErrUserNotFound
	}
	s.log.Info("password reset requested", "uid", a.UID)
	return nil
}

// IsClientError reports whether err is one of the auth sentinels a caller
// caused, as opposed to a storage failure.
func IsClientError(err error) bool {
	return ErrorCode(err) != "" && !errors.Is(err, ErrRemoteUnavailable)
}
