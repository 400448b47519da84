package generate

import (
	"errors"
	"net/http"
	"strings"

	"github.com/prabujayant/LLM-safety-gateway/internal/domain"
)

// Classify buckets a generation failure by inspecting its status code and
// message, rather than letting transport errors bubble uninspected. Only
// rate limiting is retryable.
func Classify(err error) domain.ErrorKind {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		switch gwErr.Kind {
		case domain.ErrorKindRateLimited, domain.ErrorKindUnauthorized, domain.ErrorKindUnavailable:
			return gwErr.Kind
		}
		switch gwErr.StatusCode {
		case http.StatusTooManyRequests:
			return domain.ErrorKindRateLimited
		case http.StatusUnauthorized, http.StatusForbidden:
			return domain.ErrorKindUnauthorized
		}
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "resource exhausted"),
		strings.Contains(msg, "resource_exhausted"):
		return domain.ErrorKindRateLimited

	case strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "api key"):
		return domain.ErrorKindUnauthorized

	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"):
		return domain.ErrorKindUnavailable

	default:
		return domain.ErrorKindUnknownInvocation
	}
}
