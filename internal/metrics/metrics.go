package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/restpay/payments/internal/config"
	"go.uber.org/zap"
)

var (
	RefundsCreated        = metrics.NewCounter(`payments_refunds_created_total`)
	IntegrationLoadErrors = metrics.NewCounter(`payments_integration_load_errors_total`)
)

func ChargeCreated(integration string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`payments_charges_created_total{integration=%q}`, integration)).Inc()
}

func GatewayFailure(integration string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`payments_gateway_failures_total{integration=%q}`, integration)).Inc()
}

// WritePrometheus writes every registered metric in Prometheus text format.
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, true)
}

// Setup starts pushing metrics when a push URL is configured.
func Setup(cfg config.MetricsConfig, logger *zap.Logger) {
	if cfg.URL == "" {
		return
	}

	interval := time.Duration(cfg.IntervalMs) * time.Millisecond
	if err := metrics.InitPush(cfg.URL, interval, cfg.CommonLabels, true); err != nil {
		logger.Error("failed to initialize metrics push", zap.Error(err))
	}
}

func EventPublished(transport string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`payments_events_published_total{transport=%q,result="success"}`, transport)).Inc()
}

func EventPublishFailed(transport string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`payments_events_published_total{transport=%q,result="error"}`, transport)).Inc()
}

// EventConsumed counts consumed events by result: success, decode_error,
// process_error or dropped.
func EventConsumed(transport, result string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`payments_events_consumed_total{transport=%q,result=%q}`, transport, result)).Inc()
}
