package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/customer"
)

const (
	customerColumns = `id, name, phone, contact_person, address, email, password_hash`

	createCustomerSQL = `INSERT INTO customers (name, phone, contact_person, address, email, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	getCustomerByIDSQL = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

	getCustomerByEmailSQL = `SELECT ` + customerColumns + ` FROM customers WHERE LOWER(email) = LOWER($1)`

	updateCustomerSQL = `UPDATE customers
		SET name = $2, phone = $3, contact_person = $4, address = $5, email = $6, password_hash = $7
		WHERE id = $1`

	customerExistsSQL = `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool or transaction.
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts c and sets its ID.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	err := r.db.QueryRow(ctx, createCustomerSQL,
		c.Name, c.Phone, c.ContactPerson, c.Address, c.Email, c.PasswordHash,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return customer.ErrEmailTaken
		}
		return fmt.Errorf("creating customer: %w", err)
	}
	return nil
}

// GetByID returns a single customer by its identifier.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	return r.getOne(ctx, getCustomerByIDSQL, id)
}

// GetByEmail looks a customer up by email, ignoring case.
func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return r.getOne(ctx, getCustomerByEmailSQL, email)
}

// Update overwrites every mutable column of c.
func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	tag, err := r.db.Exec(ctx, updateCustomerSQL,
		c.ID, c.Name, c.Phone, c.ContactPerson, c.Address, c.Email, c.PasswordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return customer.ErrEmailTaken
		}
		return fmt.Errorf("updating customer %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

// Exists reports whether a customer with the given ID exists.
func (r *CustomerRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, customerExistsSQL, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking customer %d: %w", id, err)
	}
	return ok, nil
}

func (r *CustomerRepository) getOne(ctx context.Context, query string, arg any) (*customer.Customer, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting customer %v: %w", arg, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %v: %w", arg, err)
	}
	return &c, nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.ContactPerson, &c.Address, &c.Email, &c.PasswordHash)
	return c, err
}
