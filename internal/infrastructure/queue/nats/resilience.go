package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/resilience"
)

// Operation names double as breaker keys under the "nats." prefix, so ingest
// requests and cache broadcasts trip independently.
const (
	opPublishIngest = "publish.ingest"
	opPublishCache  = "publish.cache"
	opSubscribe     = "subscribe"
)

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	if isRejectedMessage(err) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrReconnectBufExceeded) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

// isRejectedMessage covers failures caused by the message itself, such as a
// source key or invalidation pattern over the server's payload limit.
func isRejectedMessage(err error) bool {
	return errors.Is(err, nats.ErrMaxPayload) || errors.Is(err, nats.ErrBadSubject)
}

// wrapTemporaryIfNeeded tags err with the domain kind the HTTP layer maps:
// rejected messages are invalid input, connection failures are temporary.
func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrInvalidInput) {
		return err
	}
	if isRejectedMessage(err) {
		return domain.WrapError(domain.ErrInvalidInput, "nats "+operation, err)
	}
	class := classifyNATSError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "nats "+operation, err)
	}
	return err
}
