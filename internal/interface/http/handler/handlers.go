package handler

import (
	"github.com/restpay/payments/internal/application/service"
	"github.com/restpay/payments/internal/domain"
	sqlrepository "github.com/restpay/payments/internal/infrastructure/repository/mysql"
	"go.uber.org/zap"
)

type Handlers struct {
	Ledger *LedgerHandler
}

func NewHandlers(repos *sqlrepository.Repositories, settings service.IntegrationSettings, eventPublisher domain.EventPublisher, logger *zap.Logger) *Handlers {
	ledger := service.NewLedgerService(repos.Customer, repos.Source, repos.Charge, repos.Refund, eventPublisher, logger)
	dispatcher := service.NewDispatcher(settings, ledger, logger)
	return &Handlers{
		Ledger: NewLedgerHandler(ledger, dispatcher, logger),
	}
}
