package handler

import (
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xenking/storefront/internal/domain/customer"
)

var passwordHashRe = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

type registerRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	ContactPerson string `json:"contact_person"`
	Address       string `json:"address"`
	Email         string `json:"email"`
	Password      string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateCustomerRequest struct {
	Name          *string `json:"name"`
	Phone         *string `json:"phone"`
	ContactPerson *string `json:"contact_person"`
	Address       *string `json:"address"`
	Email         *string `json:"email"`
}

type customerResponse struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	ContactPerson string `json:"contact_person"`
	Address       string `json:"address"`
	Email         string `json:"email"`
}

func toCustomerResponse(c *customer.Customer) customerResponse {
	return customerResponse{
		ID:            c.ID,
		Name:          c.Name,
		Phone:         c.Phone,
		ContactPerson: c.ContactPerson,
		Address:       c.Address,
		Email:         c.Email,
	}
}

// field describes a customer text field and its length limit.
type field struct {
	name  string
	value string
	limit int
}

func checkFields(required bool, fields ...field) error {
	for _, f := range fields {
		if required && strings.TrimSpace(f.value) == "" {
			return invalid(f.name + " is required")
		}
		if utf8.RuneCountInString(f.value) > f.limit {
			return invalid(f.name + " is too long")
		}
	}
	return nil
}

func checkEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email is invalid")
	}
	return nil
}

func (req registerRequest) validate() error {
	if err := checkFields(true,
		field{"name", req.Name, 100},
		field{"phone", req.Phone, 20},
		field{"contact_person", req.ContactPerson, 100},
		field{"address", req.Address, 200},
		field{"email", req.Email, 100},
	); err != nil {
		return err
	}
	if err := checkEmail(req.Email); err != nil {
		return err
	}
	if !passwordHashRe.MatchString(req.Password) {
		return invalid("password must be a 64 character hex SHA-256 digest")
	}
	return nil
}

func (req updateCustomerRequest) validate() error {
	var fields []field
	add := func(name string, v *string, limit int) {
		if v != nil {
			fields = append(fields, field{name, *v, limit})
		}
	}
	add("name", req.Name, 100)
	add("phone", req.Phone, 20)
	add("contact_person", req.ContactPerson, 100)
	add("address", req.Address, 200)
	add("email", req.Email, 100)

	if err := checkFields(true, fields...); err != nil {
		return err
	}
	if req.Email != nil {
		return checkEmail(*req.Email)
	}
	return nil
}

// Register handles POST /register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.customers.Register(r.Context(), customer.Customer{
		Name:          req.Name,
		Phone:         req.Phone,
		ContactPerson: req.ContactPerson,
		Address:       req.Address,
		Email:         req.Email,
		PasswordHash:  strings.ToLower(req.Password),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toCustomerResponse(c))
}

// Login handles POST /login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.fail(w, r, invalid("email and password are required"))
		return
	}

	c, err := h.customers.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(c))
}

// GetCustomer handles GET /customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.customers.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(c))
}

// UpdateCustomer handles PUT /customers/{id}. Absent fields are kept.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var req updateCustomerRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := req.validate(); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.customers.Update(r.Context(), id, customer.Patch{
		Name:          req.Name,
		Phone:         req.Phone,
		ContactPerson: req.ContactPerson,
		Address:       req.Address,
		Email:         req.Email,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toCustomerResponse(c))
}
