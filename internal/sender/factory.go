package sender

import (
	"fmt"
	"log/slog"

	"github.com/speedwagon-io/homechecks/internal/config"
)

// New builds the sender selected by cfg.Type.
func New(log *slog.Logger, cfg *config.SenderConfig) (Sender, error) {
	log = log.With(slog.String("sender", cfg.Type))

	switch cfg.Type {
	case config.SenderStatsd:
		return NewStatsdSender(log, &cfg.Statsd)
	case config.SenderPrometheus:
		return NewPrometheusSender(log), nil
	case config.SenderInfluxDB:
		return NewInfluxSender(log, &cfg.InfluxDB), nil
	case config.SenderMQTT:
		return NewMQTTSender(log, &cfg.MQTT)
	case config.SenderHTTP:
		return NewHTTPSender(log, &cfg.HTTP), nil
	case config.SenderLog:
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, cfg.Type)
	}
}
