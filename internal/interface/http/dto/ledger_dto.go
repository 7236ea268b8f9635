package dto

import (
	"errors"
	"time"

	"github.com/restpay/payments/internal/domain"
)

type CreateChargeRequest struct {
	Amount     int64   `json:"amount"`
	Currency   string  `json:"currency"`
	SourceID   *string `json:"source_id,omitempty"`
	CustomerID *string `json:"customer_id,omitempty"`
}

func (r *CreateChargeRequest) Validate() error {
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	if r.CustomerID != nil && *r.CustomerID == "" {
		return errors.New("customer_id must not be empty")
	}
	if r.SourceID != nil && *r.SourceID == "" {
		return errors.New("source_id must not be empty")
	}
	return nil
}

type RecordStatusRequest struct {
	Status string `json:"status"`
}

func (r *RecordStatusRequest) Validate() error {
	if r.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

// CallbackRequest is a provider notification resolving a pending charge.
type CallbackRequest struct {
	IntegrationID string `json:"integration_id"`
	Status        string `json:"status"`
}

func (r *CallbackRequest) Validate() error {
	if r.IntegrationID == "" {
		return errors.New("integration_id is required")
	}
	if r.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

type CreateRefundRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (r *CreateRefundRequest) Validate() error {
	if r.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}

type CreateSourceRequest struct {
	Integration string         `json:"integration"`
	Details     map[string]any `json:"details"`
}

func (r *CreateSourceRequest) Validate() error {
	if r.Integration == "" {
		return errors.New("integration is required")
	}
	return nil
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type ChargeResponse struct {
	ID            string    `json:"id"`
	Status        string    `json:"status"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Integration   string    `json:"integration"`
	IntegrationID string    `json:"integration_id"`
	CustomerID    *string   `json:"customer_id"`
	SourceID      *string   `json:"source_id"`
	Completed     bool      `json:"completed"`
	Display       string    `json:"display"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewChargeResponse(charge *domain.Charge) ChargeResponse {
	return ChargeResponse{
		ID:            charge.ID,
		Status:        string(charge.Status),
		Amount:        charge.Amount,
		Currency:      charge.Currency,
		Integration:   charge.Integration,
		IntegrationID: charge.IntegrationID,
		CustomerID:    charge.CustomerID,
		SourceID:      charge.SourceID,
		Completed:     charge.IsCompleted(),
		Display:       charge.String(),
		CreatedAt:     charge.CreatedAt,
		UpdatedAt:     charge.UpdatedAt,
	}
}

// ChargeDetailResponse adds the refunded total; it is null when the charge
// has no refunds.
type ChargeDetailResponse struct {
	ChargeResponse
	TotalRefunded *int64 `json:"total_refunded"`
}

type RefundResponse struct {
	ID        string    `json:"id"`
	ChargeID  string    `json:"charge_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

func NewRefundResponse(refund *domain.Refund) RefundResponse {
	return RefundResponse{
		ID:        refund.ID,
		ChargeID:  refund.ChargeID,
		Amount:    refund.Amount,
		Currency:  refund.Currency,
		CreatedAt: refund.CreatedAt,
	}
}

type RefundListResponse struct {
	ChargeID      string           `json:"charge_id"`
	Count         int              `json:"count"`
	TotalRefunded *int64           `json:"total_refunded"`
	Refunds       []RefundResponse `json:"refunds"`
}

// SourceResponse leaves out Details, which may hold provider tokens.
type SourceResponse struct {
	ID          string    `json:"id"`
	Integration string    `json:"integration"`
	CreatedAt   time.Time `json:"created_at"`
}

func NewSourceResponse(source *domain.Source) SourceResponse {
	return SourceResponse{
		ID:          source.ID,
		Integration: source.Integration,
		CreatedAt:   source.CreatedAt,
	}
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalCount int64 `json:"total_count"`
	TotalPages int   `json:"total_pages"`
}

type ChargeListResponse struct {
	CustomerID string           `json:"customer_id"`
	Charges    []ChargeResponse `json:"charges"`
	Pagination Pagination       `json:"pagination"`
}
