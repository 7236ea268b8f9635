package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/restpay/payments/internal/application/service"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/interface/http/dto"
	"github.com/restpay/payments/internal/metrics"
	"go.uber.org/zap"
)

const maxCallbackBytes = 1 << 20

type LedgerHandler struct {
	ledger     *service.LedgerService
	dispatcher *service.Dispatcher
	logger     *zap.Logger
}

func NewLedgerHandler(ledger *service.LedgerService, dispatcher *service.Dispatcher, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		ledger:     ledger,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// CreateCharge charges through the configured integrations
func (h *LedgerHandler) CreateCharge(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateChargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	charge, err := h.dispatcher.Charge(r.Context(), service.ChargeInput{
		Amount:     req.Amount,
		Currency:   req.Currency,
		SourceID:   req.SourceID,
		CustomerID: req.CustomerID,
	})
	if err != nil {
		h.fail(w, "failed to create charge", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, dto.NewChargeResponse(charge))
}

func (h *LedgerHandler) GetCharge(w http.ResponseWriter, r *http.Request) {
	chargeID := chi.URLParam(r, "charge_id")

	charge, err := h.ledger.GetCharge(r.Context(), chargeID)
	if err != nil {
		h.fail(w, "failed to get charge", err)
		return
	}

	total, err := h.ledger.TotalRefunded(r.Context(), chargeID)
	if err != nil {
		h.fail(w, "failed to get refunded total", err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.ChargeDetailResponse{
		ChargeResponse: dto.NewChargeResponse(charge),
		TotalRefunded:  total,
	})
}

// RecordStatus lets an operator settle a pending charge by hand. It carries
// no provider signature, so the route must sit behind internal auth.
func (h *LedgerHandler) RecordStatus(w http.ResponseWriter, r *http.Request) {
	chargeID := chi.URLParam(r, "charge_id")

	var req dto.RecordStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	charge, err := h.ledger.RecordStatus(r.Context(), chargeID, domain.ChargeStatus(req.Status))
	if err != nil {
		h.fail(w, "failed to record status", err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.NewChargeResponse(charge))
}

// IntegrationCallback resolves a pending charge from a provider notification.
// The raw body is handed to the integration for signature checks before it
// is decoded.
func (h *LedgerHandler) IntegrationCallback(w http.ResponseWriter, r *http.Request) {
	integration := chi.URLParam(r, "integration")

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBytes))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.dispatcher.VerifyCallback(r.Context(), integration, payload, r.Header); err != nil {
		h.fail(w, "callback rejected", err)
		return
	}

	var req dto.CallbackRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	charge, err := h.ledger.RecordStatusByIntegrationID(r.Context(), integration, req.IntegrationID, domain.ChargeStatus(req.Status))
	if err != nil {
		h.fail(w, "failed to record status", err)
		return
	}

	h.respondJSON(w, http.StatusOK, dto.NewChargeResponse(charge))
}

func (h *LedgerHandler) DeleteCharge(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteCharge(r.Context(), chi.URLParam(r, "charge_id")); err != nil {
		h.fail(w, "failed to delete charge", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) CreateRefund(w http.ResponseWriter, r *http.Request) {
	chargeID := chi.URLParam(r, "charge_id")

	var req dto.CreateRefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	refund, err := h.dispatcher.Refund(r.Context(), service.RefundInput{
		ChargeID: chargeID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		h.fail(w, "failed to create refund", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, dto.NewRefundResponse(refund))
}

func (h *LedgerHandler) ListRefunds(w http.ResponseWriter, r *http.Request) {
	chargeID := chi.URLParam(r, "charge_id")

	refunds, err := h.ledger.ListRefunds(r.Context(), chargeID)
	if err != nil {
		h.fail(w, "failed to list refunds", err)
		return
	}

	response := dto.RefundListResponse{
		ChargeID: chargeID,
		Count:    len(refunds),
		Refunds:  make([]dto.RefundResponse, len(refunds)),
	}
	for i, refund := range refunds {
		response.Refunds[i] = dto.NewRefundResponse(refund)
	}
	response.TotalRefunded = domain.SumRefunds(refunds)

	h.respondJSON(w, http.StatusOK, response)
}

func (h *LedgerHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	source, err := h.ledger.RegisterSource(r.Context(), req.Integration, req.Details)
	if err != nil {
		h.fail(w, "failed to register source", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, dto.NewSourceResponse(source))
}

// ListCustomerCharges pages through a customer's charges, newest first
func (h *LedgerHandler) ListCustomerCharges(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	params := service.PaginationParams{}
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		params.Page = p
	}
	if ps, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil {
		params.PageSize = ps
	}

	page, err := h.ledger.ListCustomerCharges(r.Context(), userID, params)
	if err != nil {
		h.fail(w, "failed to list charges", err)
		return
	}

	response := dto.ChargeListResponse{
		CustomerID: userID,
		Charges:    make([]dto.ChargeResponse, len(page.Charges)),
		Pagination: dto.Pagination{
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalCount: page.Total,
			TotalPages: page.TotalPages,
		},
	}
	for i, charge := range page.Charges {
		response.Charges[i] = dto.NewChargeResponse(charge)
	}

	h.respondJSON(w, http.StatusOK, response)
}

func (h *LedgerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteCustomer(r.Context(), chi.URLParam(r, "user_id")); err != nil {
		h.fail(w, "failed to delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles health check endpoint
func (h *LedgerHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (h *LedgerHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w)
}

func (h *LedgerHandler) fail(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, zap.Error(err), zap.Int("status", status))
	} else {
		h.logger.Debug(message, zap.Error(err), zap.Int("status", status))
	}
	h.respondError(w, status, message, err)
}

func (h *LedgerHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *LedgerHandler) respondError(w http.ResponseWriter, status int, message string, err error) {
	response := dto.ErrorResponse{
		Error: message,
	}

	if err != nil {
		response.Message = err.Error()
	}

	h.respondJSON(w, status, response)
}
