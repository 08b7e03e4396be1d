package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/solacepv/qapflow/internal/config"
	"github.com/solacepv/qapflow/internal/middleware"
	"github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/repository"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// AuthService verifies credentials and issues the JWTs the middleware
// validates.
type AuthService struct {
	users *repository.UserRepository
	cfg   config.JWTConfig
}

func NewAuthService(users *repository.UserRepository, cfg config.JWTConfig) *AuthService {
	return &AuthService{users: users, cfg: cfg}
}

// Login checks the bcrypt password hash and returns a signed token plus the
// user record. Credential failures are indistinguishable on purpose.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *entity.User, error) {
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if user.Status != "active" {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *AuthService) issueToken(user *entity.User) (string, error) {
	now := time.Now()
	claims := middleware.Claims{
		UserID:   user.ID,
		Username: user.Username,
		Name:     user.Name,
		Role:     string(user.Role),
		Plants:   user.Plants.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenExpire)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// HashPassword is used by seeding and user management.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
