package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/bankcards/card-service/internal/apperr"
	"github.com/bankcards/card-service/internal/models"
)

const tokenTTL = 24 * time.Hour

// AuthService issues and verifies identities. The rest of the system only
// consumes it as "current user id + role".
type AuthService struct {
	users     UserStore
	jwtSecret []byte
	adminCode string
	log       *logrus.Logger
}

// NewAuthService wires the auth service.
func NewAuthService(users UserStore, jwtSecret, adminCode string, log *logrus.Logger) *AuthService {
	return &AuthService{users: users, jwtSecret: []byte(jwtSecret), adminCode: adminCode, log: log}
}

// Register creates a regular user with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, username, email, phone, password string) (*models.User, error) {
	return s.register(ctx, username, email, phone, password, models.RoleUser)
}

// RegisterAdmin creates an administrator; the caller must present the
// registration code configured for the deployment.
func (s *AuthService) RegisterAdmin(ctx context.Context, username, email, phone, password, code string) (*models.User, error) {
	if code != s.adminCode {
		return nil, apperr.BadRequest(apperr.CodeInvalidAdminCode, "invalid admin registration code")
	}
	return s.register(ctx, username, email, phone, password, models.RoleAdmin)
}

func (s *AuthService) register(ctx context.Context, username, email, phone, password string, role models.Role) (*models.User, error) {
	if taken, err := s.users.UsernameExists(ctx, username); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict(apperr.CodeUsernameExists, "username already taken: %s", username)
	}
	if taken, err := s.users.PhoneExists(ctx, phone); err != nil {
		return nil, err
	} else if taken {
		return nil, apperr.Conflict(apperr.CodePhoneExists, "phone number already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PhoneNumber:  phone,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("User registered")
	return user, nil
}

// Login authenticates a user and returns a signed JWT.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return "", apperr.New(http.StatusUnauthorized, apperr.CodeInvalidCredentials, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", apperr.New(http.StatusUnauthorized, apperr.CodeInvalidCredentials, "invalid credentials")
	}

	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": string(user.Role),
		"exp":  jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	s.log.WithField("user_id", user.ID).Info("User logged in")
	return signed, nil
}

// ParseToken verifies a JWT and extracts the identity and role.
func (s *AuthService) ParseToken(tokenString string) (uuid.UUID, models.Role, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, "", apperr.Unauthorized("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, "", apperr.Unauthorized("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", apperr.Unauthorized("invalid token subject")
	}
	role, _ := claims["role"].(string)
	return userID, models.Role(role), nil
}
