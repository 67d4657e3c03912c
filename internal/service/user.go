package service

import (
	"context"
	"database/sql"
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"filedrop/internal/auth"
	"filedrop/internal/model"
	"filedrop/internal/repository"
)

// MinPasswordLength is the minimum accepted account password length.
const MinPasswordLength = 8

var (
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Session holds an authenticated user together with their session token.
type Session struct {
	User  *model.User
	Token string
}

// UserService defines the account use cases.
type UserService interface {
	// Register validates the email and password, hashes the password, and
	// creates the account. Returns ErrEmailTaken for duplicate emails.
	Register(ctx context.Context, email, password string) (*model.User, error)

	// Login verifies credentials and issues a session token. Unknown email
	// and wrong password both map to ErrInvalidCredentials so the response
	// does not reveal which one failed.
	Login(ctx context.Context, email, password string) (*Session, error)
}

type userService struct {
	repo     repository.UserRepository
	hasher   *auth.PasswordHasher
	sessions *auth.SessionManager
}

// NewUserService constructs a UserService.
func NewUserService(repo repository.UserRepository, hasher *auth.PasswordHasher, sessions *auth.SessionManager) UserService {
	return &userService{repo: repo, hasher: hasher, sessions: sessions}
}

func (s *userService) Register(ctx context.Context, email, password string) (*model.User, error) {
	if email == "" {
		return nil, ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		RegisteredAt: time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, u)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return stored, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token}, nil
}
