package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/access"
	"github.com/jeovahfialho/tradelog/internal/auth"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/pkg/logger"
	"go.uber.org/zap"
)

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

type AuthService struct {
	store  Store
	cache  Cache
	tokens *auth.TokenManager
	now    Clock
}

func NewAuthService(store Store, cache Cache, tokens *auth.TokenManager) *AuthService {
	return &AuthService{
		store:  store,
		cache:  cache,
		tokens: tokens,
		now:    time.Now,
	}
}

// Register creates a TRADER account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Token, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	username := strings.TrimSpace(in.Username)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.Invalid("email", "is not a valid address")
	}
	if username == "" {
		return nil, domain.Invalid("username", "is required")
	}
	if in.Password == "" {
		return nil, domain.Invalid("password", "is required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:             uuid.New(),
		Email:          email,
		Username:       username,
		HashedPassword: hash,
		Role:           domain.RoleTrader,
		CreatedAt:      s.now().UTC(),
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		exists, err := tx.UserExists(ctx, email, username)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("email or username already taken: %w", domain.ErrConflict)
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	invalidateAnalytics(ctx, s.cache)

	logger.WithContext(ctx).Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username))

	return s.issue(user)
}

// Login checks the credentials. Unknown emails and wrong passwords fail the
// same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Token, error) {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err != nil || !auth.VerifyPassword(user.HashedPassword, password) {
		return nil, fmt.Errorf("incorrect email or password: %w", domain.ErrAuthentication)
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, p access.Principal) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("token user no longer exists: %w", domain.ErrAuthentication)
	}
	return user, nil
}

// EnsureAdmin creates the admin account unless a user with that email
// already exists. It reports whether a user was created.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, username, password string) (bool, error) {
	return s.ensureUser(ctx, email, username, password, domain.RoleAdmin)
}

// EnsureTrader is EnsureAdmin for TRADER accounts; the seed command uses it.
func (s *AuthService) EnsureTrader(ctx context.Context, email, username, password string) (*domain.User, error) {
	if _, err := s.ensureUser(ctx, email, username, password, domain.RoleTrader); err != nil {
		return nil, err
	}
	return s.store.GetUserByEmail(ctx, strings.ToLower(email))
}

func (s *AuthService) ensureUser(ctx context.Context, email, username, password string, role domain.Role) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}

	created := false
	err = s.store.InTx(ctx, func(tx Store) error {
		exists, err := tx.UserExists(ctx, email, username)
		if err != nil || exists {
			return err
		}
		created = true
		return tx.CreateUser(ctx, &domain.User{
			ID:             uuid.New(),
			Email:          email,
			Username:       username,
			HashedPassword: hash,
			Role:           role,
			CreatedAt:      s.now().UTC(),
		})
	})
	if err != nil {
		return false, fmt.Errorf("ensure %s user: %w", strings.ToLower(string(role)), err)
	}
	if created {
		invalidateAnalytics(ctx, s.cache)
	}
	return created, nil
}

// DeleteUser removes a user and, through the store's cascade, all of its trades.
func (s *AuthService) DeleteUser(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	invalidateAnalytics(ctx, s.cache, user.ID)
	logger.WithContext(ctx).Info("user deleted", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *AuthService) issue(u *domain.User) (*Token, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: token, TokenType: auth.TokenType}, nil
}
