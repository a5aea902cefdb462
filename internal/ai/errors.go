package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/suPer8Hu/personachat/internal/common"
)

func missingKey(provider string) error {
	return common.NewConfigurationError(provider, "api key not configured")
}

// transportError converts a failed round trip into a ProviderError.
func transportError(provider string, err error) error {
	pe := &common.ProviderError{Provider: provider, Msg: err.Error(), Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		pe.Status = http.StatusGatewayTimeout
		pe.Msg = "request timed out"
	}
	return pe
}

// statusError reads a bounded slice of a non-2xx body into a ProviderError.
func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return &common.ProviderError{Provider: provider, Status: resp.StatusCode, Msg: msg}
}
