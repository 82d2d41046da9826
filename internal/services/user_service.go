package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/nukta-be/internal/apperror"
	"github.com/isdelr/nukta-be/internal/auth"
	"github.com/isdelr/nukta-be/internal/models"
	"github.com/isdelr/nukta-be/internal/store"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const msgBadCredentials = "Invalid email or password"

// UserServiceProvider defines the identity operations.
type UserServiceProvider interface {
	Signup(ctx context.Context, in SignupInput) (models.User, string, error)
	Login(ctx context.Context, email, password string) (models.User, string, error)
	Authenticate(ctx context.Context, token string) (models.User, error)
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// SignupInput is the data required to register.
type SignupInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// UserService verifies credentials and issues session tokens.
type UserService struct {
	users  store.UserStore
	tokens *auth.TokenIssuer
	cost   int
}

// NewUserService creates a new UserService.
func NewUserService(users store.UserStore, tokens *auth.TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

// Signup registers a user and returns it with a fresh token.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (models.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return models.User{}, "", validationError("Please provide a valid name, email and password", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return models.User{}, "", apperror.NewConflict("User with this email already exists", err)
		}
		return models.User{}, "", err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to issue token: %w", err)
	}

	log.Info().Str("user_id", user.ID).Msg("User registered")
	user.PasswordHash = ""
	return user, token, nil
}

// Login checks credentials. Unknown email and wrong password fail identically.
func (s *UserService) Login(ctx context.Context, email, password string) (models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return models.User{}, "", apperror.NewValidation("Please provide email and password")
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, "", apperror.NewUnauthorized(msgBadCredentials, nil)
		}
		return models.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, "", apperror.NewUnauthorized(msgBadCredentials, nil)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to issue token: %w", err)
	}

	user.PasswordHash = ""
	return user, token, nil
}

// Authenticate resolves a session token to its user.
func (s *UserService) Authenticate(ctx context.Context, token string) (models.User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.User{}, apperror.NewUnauthorized("Not authorized, token failed", err)
	}

	user, err := s.users.FindUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, apperror.NewUnauthorized("Not authorized, user not found", err)
		}
		return models.User{}, err
	}

	user.PasswordHash = ""
	return user, nil
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, apperror.NewNotFound("User not found")
		}
		return models.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}
