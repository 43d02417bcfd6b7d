package auth

import "errors"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

var (
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Requester is the identity every core operation acts on behalf of.
type Requester struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

func (r Requester) IsAdmin() bool { return r.Role == RoleAdmin }

func (r Requester) Authenticated() bool { return r.UserID > 0 && r.Role.Valid() }

func RequireAdmin(r Requester) error {
	if !r.Authenticated() {
		return ErrUnauthenticated
	}
	if !r.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func RequireAuthenticated(r Requester) error {
	if !r.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}
