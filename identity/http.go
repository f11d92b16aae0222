package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/lborres/vouch/core"
)

func newRestyClient(cfg core.ProviderConfig) *resty.Client {
	return resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
}

// providerFailure classifies a transport error as a timeout or an
// unreachable provider, tagged with the phase that failed. A caller that
// cancelled keeps context.Canceled as the cause and is neither.
func providerFailure(op string, kind, err error) *core.ProviderError {
	if errors.Is(err, context.Canceled) {
		return &core.ProviderError{Op: op, Err: kind, Cause: err}
	}

	cause := core.ErrProviderUnreachable
	if isTimeout(err) {
		cause = core.ErrTimeout
	}
	return &core.ProviderError{
		Op:    op,
		Err:   kind,
		Cause: fmt.Errorf("%w: %v", cause, err),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// providerMessage pulls the top-level "message" field out of an error body.
// Other error shapes are not guessed at.
func providerMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}

func rejectsToken(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
