package domain

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrInvalidCustomerID = errors.New("invalid customer ID")
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrSourceNotFound    = errors.New("source not found")
	ErrInvalidSource     = errors.New("invalid source")
)

// Customer ties payment activity to an external identity. The identity
// reference doubles as the primary key, so a user can never have two
// customers.
type Customer struct {
	UserID    string
	CreatedAt time.Time
}

// NewCustomer creates a customer for the given identity
func NewCustomer(userID string) (*Customer, error) {
	if userID == "" {
		return nil, ErrInvalidCustomerID
	}

	return &Customer{
		UserID:    userID,
		CreatedAt: time.Now(),
	}, nil
}

// Source is a payment instrument registered by an integration. Provider
// specific fields (card tokens, fingerprints) live in Details.
type Source struct {
	ID          string
	Integration string
	Details     map[string]any
	CreatedAt   time.Time
}

func NewSource(integration string, details map[string]any) *Source {
	if details == nil {
		details = map[string]any{}
	}
	return &Source{
		Integration: integration,
		Details:     details,
		CreatedAt:   time.Now(),
	}
}

// Token returns the provider token stored under "token", if any.
func (s *Source) Token() string {
	if s == nil {
		return ""
	}
	token, _ := s.Details["token"].(string)
	return token
}
