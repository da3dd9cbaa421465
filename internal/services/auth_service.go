package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/careerpath/internal/models"
	mongorepo "github.com/yoockh/careerpath/internal/repositories/mongo"
	"github.com/yoockh/careerpath/internal/utils"
)

type AuthService interface {
	// Register creates the user and returns a token, so signup logs in.
	Register(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
}

type authService struct {
	users  mongorepo.UserRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthService(users mongorepo.UserRepository, secret string, ttl time.Duration) AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &authService{users: users, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *authService) Register(ctx context.Context, username, email, password string) (string, error) {
	const op = "AuthService.Register"

	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || password == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "username, email, and password are required", nil)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", utils.E(utils.CodeInvalidArgument, op, "email is invalid", err)
	}

	hash, err := utils.HashPassword(password)
	if errors.Is(err, utils.ErrWeakPassword) {
		return "", utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}

	u := &models.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, utils.ErrDuplicate) {
			return "", utils.E(utils.CodeConflict, op, "user already exists", err)
		}
		return "", utils.E(utils.CodeInternal, op, "failed to create user", err)
	}
	return s.issue(op, u.ID.Hex())
}

func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "AuthService.Login"

	if strings.TrimSpace(email) == "" || password == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "email and password are required", nil)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, utils.ErrNotFound) {
		return "", utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to load user", err)
	}
	if err := utils.CheckPassword(u.PasswordHash, password); err != nil {
		return "", utils.E(utils.CodeUnauthorized, op, "invalid credentials", nil)
	}
	return s.issue(op, u.ID.Hex())
}

func (s *authService) issue(op, userID string) (string, error) {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to sign token", err)
	}
	return signed, nil
}
