package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"tumocare-auth/internal/mailer"
	"tumocare-auth/internal/observability"
)

// Store persists one record per account. Implementations must enforce
// normalized-email uniqueness atomically: a concurrent duplicate create
// surfaces as ErrAccountExists from Create, never as two successes.
type Store interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	Create(ctx context.Context, email, passwordHash string) (Account, error)
	UpdatePasswordHash(ctx context.Context, id, newHash string) error
}

type Service struct {
	store         Store
	hasher        *PasswordHasher
	tokens        *TokenService
	mail          mailer.Mailer
	logger        *observability.Logger
	resetLinkBase string

	// dummyHash keeps the unknown-email login branch as expensive as
	// the wrong-password branch.
	dummyHash string
}

func NewService(
	store Store,
	hasher *PasswordHasher,
	tokens *TokenService,
	mail mailer.Mailer,
	logger *observability.Logger,
	resetLinkBase string,
) *Service {
	dummyHash, err := hasher.Hash("tumocare-dummy-credential")
	if err != nil {
		dummyHash = ""
	}

	return &Service{
		store:         store,
		hasher:        hasher,
		tokens:        tokens,
		mail:          mail,
		logger:        logger,
		resetLinkBase: strings.TrimRight(resetLinkBase, "/"),
		dummyHash:     dummyHash,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) Register(ctx context.Context, email, password string) (Account, error) {
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)

	_, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		return Account{}, ErrAccountExists
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return Account{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	// The pre-check above is only a fast path; the store's uniqueness
	// constraint decides the race and reports ErrAccountExists here.
	return s.store.Create(ctx, email, hash)
}

func (s *Service) Login(ctx context.Context, email, password string) (SessionToken, error) {
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.hasher.Verify(password, s.dummyHash)
			return SessionToken{}, ErrInvalidCredentials
		}
		return SessionToken{}, err
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return SessionToken{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(account.ID, PurposeSession)
	if err != nil {
		return SessionToken{}, fmt.Errorf("issue session token: %w", err)
	}

	return SessionToken{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokens.Lifetime(PurposeSession).Seconds()),
	}, nil
}

func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.tokens.Issue(account.ID, PurposePasswordReset)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	link := s.resetLinkBase + "?token=" + url.QueryEscape(token)
	subject := "Reset Your Password"
	body := passwordResetBody(link, int(s.tokens.Lifetime(PurposePasswordReset).Minutes()))

	// The token stays valid whether or not the email goes out.
	if err := s.mail.Send(account.Email, subject, body); err != nil {
		s.logger.Error("reset_email_failed", map[string]any{
			"email": account.Email,
			"error": err.Error(),
		})
		return ErrDeliveryFailed
	}

	return nil
}

func (s *Service) ResetPassword(ctx context.Context, tokenString, newPassword string) error {
	subjectID, err := s.tokens.Verify(tokenString, PurposePasswordReset)
	if err != nil {
		return err
	}

	account, err := s.store.FindByID(ctx, subjectID)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(strings.TrimSpace(newPassword))
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	return s.store.UpdatePasswordHash(ctx, account.ID, hash)
}

func (s *Service) Account(ctx context.Context, id string) (Account, error) {
	return s.store.FindByID(ctx, id)
}

// EnsureDefaultAccount seeds the well-known account on boot. It is
// idempotent: an existing account is left untouched, and losing a
// concurrent-create race counts as success.
func (s *Service) EnsureDefaultAccount(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	password = strings.TrimSpace(password)

	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("DEFAULT_USER_EMAIL and DEFAULT_USER_PASSWORD are required together")
	}

	_, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		s.logger.Info("default_account_present", map[string]any{"email": email})
		return nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash default password: %w", err)
	}

	if _, err := s.store.Create(ctx, email, hash); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil
		}
		return err
	}

	s.logger.Info("default_account_created", map[string]any{"email": email})
	return nil
}

func passwordResetBody(link string, expiryMinutes int) string {
	return fmt.Sprintf(`<p>Hello,</p>
<p>Click the link below to reset your password:</p>
<a href="%s">%s</a>
<p>This link will expire in %d minutes.</p>`, link, link, expiryMinutes)
}
