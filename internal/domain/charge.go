package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("amount must be a positive integer")
	ErrInvalidCurrency    = errors.New("invalid currency code")
	ErrInvalidStatus      = errors.New("invalid charge status")
	ErrInvalidTransition  = errors.New("invalid charge status transition")
	ErrCurrencyMismatch   = errors.New("refund currency does not match charge currency")
	ErrOverRefund         = errors.New("refund total would exceed charge amount")
	ErrChargeNotCompleted = errors.New("charge is not completed")
	ErrChargeNotFound     = errors.New("charge not found")
)

const (
	minCurrencyLength = 3
	maxCurrencyLength = 16
)

type ChargeStatus string

const (
	ChargeStatusFailed    ChargeStatus = "failed"
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusSucceeded ChargeStatus = "succeeded"
)

func (s ChargeStatus) Valid() bool {
	switch s {
	case ChargeStatusFailed, ChargeStatusPending, ChargeStatusSucceeded:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s ChargeStatus) IsTerminal() bool {
	return s == ChargeStatusFailed || s == ChargeStatusSucceeded
}

// Charge is the ledger record of a payment attempt. Amount, Currency,
// IntegrationID and CreatedAt are write-once; only Status moves, and only
// out of pending.
type Charge struct {
	ID            string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Status        ChargeStatus
	Amount        int64 // smallest currency unit
	Currency      string
	IntegrationID string
	Integration   string
	CustomerID    *string
	SourceID      *string
}

// NewCharge validates the write-once fields and returns a charge. An empty
// status means pending; integrations that learn the outcome synchronously
// may pass a terminal status directly.
func NewCharge(amount int64, currency, integrationID string, status ChargeStatus) (*Charge, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	code, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	if status == "" {
		status = ChargeStatusPending
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	now := time.Now()
	return &Charge{
		CreatedAt:     now,
		UpdatedAt:     now,
		Status:        status,
		Amount:        amount,
		Currency:      code,
		IntegrationID: integrationID,
	}, nil
}

func (c *Charge) IsCompleted() bool {
	return c.Status != ChargeStatusPending
}

// RecordStatus moves a pending charge to succeeded or failed. A completed
// charge is frozen; re-settlement needs a new charge or a refund.
func (c *Charge) RecordStatus(status ChargeStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if c.IsCompleted() || !status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, status)
	}

	c.Status = status
	c.UpdatedAt = time.Now()
	return nil
}

// NewRefund validates a refund against the charge. totalRefunded is the
// current sum of the charge's refunds, nil when there are none; the caller
// must hold whatever lock makes that sum current.
func (c *Charge) NewRefund(amount int64, currency string, totalRefunded *int64) (*Refund, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if !c.IsCompleted() {
		return nil, ErrChargeNotCompleted
	}

	code, err := NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	if code != c.Currency {
		return nil, fmt.Errorf("%w: %s != %s", ErrCurrencyMismatch, code, c.Currency)
	}

	var refunded int64
	if totalRefunded != nil {
		refunded = *totalRefunded
	}
	// refunded never exceeds c.Amount, so the subtraction cannot overflow
	if amount > c.Amount-refunded {
		return nil, fmt.Errorf("%w: %d + %d > %d", ErrOverRefund, refunded, amount, c.Amount)
	}

	return &Refund{
		ChargeID:  c.ID,
		Amount:    amount,
		Currency:  code,
		CreatedAt: time.Now(),
	}, nil
}

func (c *Charge) String() string {
	return fmt.Sprintf("Charge - %s %s @%s",
		decimal.New(c.Amount, -2).StringFixed(2),
		c.Currency,
		c.CreatedAt.Format(time.RFC3339),
	)
}

// NormalizeCurrency upper-cases an ISO-4217 style code. Providers may use
// longer codes, hence the 16 character ceiling.
func NormalizeCurrency(currency string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) < minCurrencyLength || len(code) > maxCurrencyLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	for i, r := range code {
		isLetter := r >= 'A' && r <= 'Z'
		isDigit := r >= '0' && r <= '9'
		if !isLetter && (i == 0 || !isDigit) {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
		}
	}
	return code, nil
}
