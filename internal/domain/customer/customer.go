package customer

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrEmailTaken is returned when another customer already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned when login email or password hash do not match.
	ErrInvalidCredentials = errors.New("incorrect credentials")
)

// Customer is a registered buyer. PasswordHash is the hex SHA-256 digest
// supplied by the client; it is never returned over the wire.
type Customer struct {
	ID            int64
	Name          string
	Phone         string
	ContactPerson string
	Address       string
	Email         string
	PasswordHash  string
}

// Patch holds the fields of a partial update. Nil fields are left unchanged.
type Patch struct {
	Name          *string
	Phone         *string
	ContactPerson *string
	Address       *string
	Email         *string
}

// Apply copies the set fields of p onto c.
func (p Patch) Apply(c *Customer) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.ContactPerson != nil {
		c.ContactPerson = *p.ContactPerson
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
}

// Repository defines persistence operations for customers. Create and
// Update return ErrEmailTaken on a unique email violation.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	GetByID(ctx context.Context, id int64) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	Update(ctx context.Context, c *Customer) error
}
