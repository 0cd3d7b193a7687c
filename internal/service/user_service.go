package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"video-cloud/internal/domain"
	"video-cloud/internal/repository"
)

const minPasswordLength = 8

var validate = validator.New()

// Verifier checks an email/password pair and resolves the identity behind it.
type Verifier interface {
	Verify(ctx context.Context, email, password string) (*domain.Identity, error)
}

// UserService describes user lifecycle operations.
type UserService interface {
	Verifier
	Register(ctx context.Context, email, password string) (*domain.Identity, error)
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
}

type userService struct {
	users   repository.UserRepository
	cost    int
	compare func(hash, password []byte) error

	placeholderOnce sync.Once
	placeholderHash []byte
}

func NewUserService(users repository.UserRepository) UserService {
	return &userService{
		users:   users,
		cost:    bcrypt.DefaultCost,
		compare: bcrypt.CompareHashAndPassword,
	}
}

func (s *userService) Register(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = strings.TrimSpace(email)

	if email == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrValidation)
	}
	if err := validate.Var(email, "email"); err != nil {
		return nil, fmt.Errorf("email is malformed: %w", domain.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("password is required: %w", domain.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user.Identity(), nil
}

// Verify reports ErrAuthentication for both an unknown email and a wrong
// password so callers cannot learn which addresses are registered.
func (s *userService) Verify(ctx context.Context, email, password string) (*domain.Identity, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("missing email or password: %w", domain.ErrValidation)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// a miss costs the same as a wrong password
			_ = s.comparePassword(s.missingUserHash(), password)
			return nil, domain.ErrAuthentication
		}
		return nil, err
	}

	if err := s.comparePassword([]byte(user.PasswordHash), password); err != nil {
		return nil, domain.ErrAuthentication
	}
	return user.Identity(), nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Identity(), nil
}

func (s *userService) comparePassword(hash []byte, password string) error {
	if s.compare == nil {
		return bcrypt.CompareHashAndPassword(hash, []byte(password))
	}
	return s.compare(hash, []byte(password))
}

// missingUserHash is a hash at the service cost that no password is expected to match.
func (s *userService) missingUserHash() []byte {
	s.placeholderOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cost)
		if err == nil {
			s.placeholderHash = hash
		}
	})
	return s.placeholderHash
}
