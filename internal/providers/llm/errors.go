package llm

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/yoockh/careerpath/internal/utils"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusError is a non-2xx answer from an HTTP completion service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return "completion service returned " + http.StatusText(e.StatusCode)
}

// classify maps a transport failure onto the generation error kinds.
// Deadline expiry wins over everything else, wherever it was noticed.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return utils.K(utils.KindGenerationTimeout, op, "roadmap generation timed out", err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return utils.K(utils.KindGenerationTimeout, op, "roadmap generation timed out", err)
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return utils.K(utils.KindGenerationQuota, op, "generation quota exhausted", err)
		case se.StatusCode == http.StatusRequestTimeout || se.StatusCode == http.StatusGatewayTimeout:
			return utils.K(utils.KindGenerationTimeout, op, "roadmap generation timed out", err)
		default:
			return utils.K(utils.KindGenerationUnavailable, op, "generation service unavailable", err)
		}
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return utils.K(utils.KindGenerationQuota, op, "generation quota exhausted", err)
		case codes.DeadlineExceeded:
			return utils.K(utils.KindGenerationTimeout, op, "roadmap generation timed out", err)
		}
	}

	if errors.Is(err, context.Canceled) {
		return utils.K(utils.KindGenerationUnavailable, op, "generation cancelled", err)
	}
	return utils.K(utils.KindGenerationUnavailable, op, "generation service unavailable", err)
}
