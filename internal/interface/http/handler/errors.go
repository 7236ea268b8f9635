package handler

import (
	"errors"
	"net/http"

	"github.com/restpay/payments/internal/application/service"
	"github.com/restpay/payments/internal/domain"
	"github.com/restpay/payments/internal/settings"
)

// statusFor maps ledger and dispatcher errors to HTTP statuses.
func statusFor(err error) int {
	var loadErr *settings.IntegrationLoadError

	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCurrency),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidCustomerID),
		errors.Is(err, domain.ErrInvalidSource):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrCallbackRejected):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrChargeNotFound),
		errors.Is(err, domain.ErrCustomerNotFound),
		errors.Is(err, domain.ErrSourceNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrChargeNotCompleted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrOverRefund):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrGatewayFailed),
		errors.Is(err, service.ErrAllIntegrationsFailed):
		return http.StatusBadGateway
	case errors.Is(err, service.ErrNoIntegrations),
		errors.Is(err, service.ErrIntegrationUnavailable),
		errors.Is(err, settings.ErrUnknownSetting),
		errors.As(err, &loadErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
