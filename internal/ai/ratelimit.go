package ai

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/suPer8Hu/personachat/internal/common"
)

// RateLimited spaces Generate calls to at most rpm per minute. Waiting is
// bounded by the caller's context.
type RateLimited struct {
	Provider
	limiter *rate.Limiter
}

func NewRateLimited(p Provider, rpm int) Provider {
	if rpm <= 0 {
		return p
	}
	return &RateLimited{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm),
	}
}

func (r *RateLimited) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", &common.ProviderError{
			Provider: r.Name(),
			Status:   http.StatusTooManyRequests,
			Msg:      "rate limit wait aborted",
			Err:      err,
		}
	}
	return r.Provider.Generate(ctx, req)
}

func (r *RateLimited) Unwrap() Provider { return r.Provider }
