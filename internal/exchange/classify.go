package exchange

import (
	"context"
	"errors"
	"net/http"

	"ohlcv-collector/internal/exchange/rest"
)

// ClassifyHTTP maps a REST client failure onto an error kind. Adapters
// refine the result where an exchange hides symbol or rate-limit
// signals inside its response envelope. Context cancellation passes
// through untyped so callers can tell a user abort from a live failure.
func ClassifyHTTP(name string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var de *rest.DecodeError
	if errors.As(err, &de) {
		return WrapError(KindSchema, name, "malformed response body", err)
	}
	var he *rest.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Status == http.StatusTooManyRequests || he.Status == 418:
			return WrapError(KindRateLimited, name, "rate limited", err)
		case he.Status == http.StatusNotFound:
			return WrapError(KindNotFound, name, "symbol not found", err)
		case he.Status >= 500:
			return WrapError(KindNetwork, name, "server error", err)
		default:
			return WrapError(KindSchema, name, "unexpected response", err)
		}
	}
	return WrapError(KindNetwork, name, "request failed", err)
}
