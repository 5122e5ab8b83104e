package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/core/domain"
	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/resilience"
)

const (
	opEmbed    = "embed"
	opGenerate = "generate"
)

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// modelMissing reports Ollama's 404 for a model that was never pulled.
func (e *HTTPStatusError) modelMissing() bool {
	return e.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(e.Body), "model")
}

// classifierFor returns the failure policy of one Ollama endpoint. Embeddings
// retry every transient status; generation records 408 and 500 against the
// breaker without retrying them.
func classifierFor(operation string) resilience.ErrorClassifier {
	return func(err error) resilience.ErrorClassification {
		return classifyOllamaError(operation, err)
	}
}

func classifyOllamaError(operation string, err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Only embeddings retry a per-attempt deadline.
		return resilience.ErrorClassification{
			Retryable:     operation == opEmbed,
			RecordFailure: operation == opGenerate,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.modelMissing() {
			return resilience.ErrorClassification{
				Retryable:     false,
				RecordFailure: true,
			}
		}
		if isRetryableHTTPStatus(operation, statusErr.StatusCode) {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: statusErr.StatusCode >= http.StatusInternalServerError,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
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

func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.modelMissing() {
		return domain.WrapError(domain.ErrNotFound, "ollama "+operation+" model", err)
	}
	class := classifyOllamaError(operation, err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "ollama "+operation, err)
	}
	return err
}

func isRetryableHTTPStatus(operation string, statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	case http.StatusRequestTimeout, http.StatusInternalServerError:
		return operation == opEmbed
	default:
		return false
	}
}
