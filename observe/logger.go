package observe

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	x402 "github.com/x402-foundation/x402-fetch"
)

// NewLogger builds a JSON zap logger writing to stderr.
// stdout is reserved for the MCP stdio transport.
func NewLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(parsed)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "ts"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config.Build()
}

// EventLogger logs every state transition with the call ID.
// Signatures are never logged.
type EventLogger struct {
	logger *zap.Logger
}

// NewEventLogger creates an observer writing to logger
func NewEventLogger(logger *zap.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Observe implements x402.Observer
func (l *EventLogger) Observe(_ context.Context, event x402.Event) {
	fields := []zap.Field{
		zap.String("call_id", event.CallID),
		zap.String("state", string(event.State)),
		zap.String("method", event.Method),
		zap.String("url", event.URL),
		zap.Duration("elapsed", event.Duration),
	}
	if event.Status != 0 {
		fields = append(fields, zap.Int("status", event.Status))
	}
	if r := event.Requirement; r != nil {
		fields = append(fields,
			zap.Int("x402_version", r.X402Version),
			zap.String("scheme", r.Scheme),
			zap.String("network", string(r.Network)),
			zap.Stringer("amount", r.Amount),
			zap.String("pay_to", r.PayTo),
		)
	}
	if d := event.Decision; d != nil && !d.Accepted {
		fields = append(fields, zap.String("decline_reason", string(d.Reason)))
	}
	if a := event.Authorization; a != nil {
		fields = append(fields,
			zap.String("from", a.From),
			zap.String("nonce", a.Nonce),
		)
	}
	if r := event.Receipt; r != nil {
		fields = append(fields,
			zap.String("tx_hash", r.TxHash),
			zap.Bool("settled", r.Settled),
		)
	}
	if event.Err != nil {
		fields = append(fields,
			zap.String("code", x402.ErrorCode(event.Err)),
			zap.Error(event.Err),
		)
	}

	switch event.State {
	case x402.StateFailed:
		if x402.IsErrorCode(event.Err, x402.ErrCodePaymentDeclined) {
			l.logger.Warn("payment declined", fields...)
			return
		}
		l.logger.Error("fetch failed", fields...)
	case x402.StateCompleted:
		switch {
		case event.Err != nil:
			l.logger.Warn("fetch completed with unreadable settlement", fields...)
		case event.PaymentMade():
			l.logger.Info("paid fetch completed", fields...)
		default:
			l.logger.Debug("fetch completed", fields...)
		}
	case x402.StateChallengeDetected:
		l.logger.Info("payment challenge received", fields...)
	case x402.StateAuthorizing:
		l.logger.Info("authorizing payment", fields...)
	case x402.StateRetried:
		l.logger.Info("paid request sent", fields...)
	default:
		l.logger.Debug("fetch "+string(event.State), fields...)
	}
}
