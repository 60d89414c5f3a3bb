package customer

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/go-faster/errors"
)

// Service implements registration, login and profile maintenance.
type Service struct {
	repo Repository
}

// NewService creates a customer Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register stores a new customer unless the email is already in use.
func (s *Service) Register(ctx context.Context, c Customer) (*Customer, error) {
	_, err := s.repo.GetByEmail(ctx, c.Email)
	switch {
	case err == nil:
		return nil, ErrEmailTaken
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "lookup email")
	}

	if err := s.repo.Create(ctx, &c); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, errors.Wrap(err, "create customer")
	}
	return &c, nil
}

// Login returns the customer owning email when passwordHash matches the
// stored digest.
func (s *Service) Login(ctx context.Context, email, passwordHash string) (*Customer, error) {
	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "lookup email")
	}

	given := []byte(strings.ToLower(passwordHash))
	if subtle.ConstantTimeCompare(given, []byte(c.PasswordHash)) != 1 {
		return nil, ErrInvalidCredentials
	}
	return c, nil
}

// Get returns the customer with the given id.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, p Patch) (*Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p.Apply(c)
	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "update customer %d", id)
	}
	return c, nil
}
