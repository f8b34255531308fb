// Package oracle wraps every external price provider behind one Source
// interface. Each adapter normalizes its provider's schema into a PriceQuote
// at this boundary; schema drift stays inside the adapter.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/pkg/retrier"
)

// Source issues a single price request to one external provider.
// Implementations are stateless; one failing provider cannot affect others.
type Source interface {
	Name() string
	FetchPrice(ctx context.Context, token domain.TokenRef) (domain.PriceQuote, error)
}

// HTTPError is a non-2xx provider response.
type HTTPError struct {
	Source     string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("%s http %d", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("%s http %d: %s", e.Source, e.StatusCode, b)
}

// fetcher is the shared HTTP plumbing for REST adapters: per-source rate
// limit, uniform retry policy, transient/permanent classification.
type fetcher struct {
	source  string
	client  *http.Client
	limiter *rate.Limiter
	retry   *retrier.Retrier
}

func newFetcher(source string, timeout time.Duration, rps float64, retry *retrier.Retrier) *fetcher {
	if retry == nil {
		retry = retrier.New()
	}
	return &fetcher{
		source:  source,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   retry,
	}
}

// getJSON fetches url and decodes the body into out. Network errors and 5xx
// responses are retried per policy; 4xx responses and undecodable bodies are
// permanent failures for this call.
func (f *fetcher) getJSON(ctx context.Context, url string, out any) error {
	return f.retry.Do(ctx, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return retrier.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return retrier.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		res, err := f.client.Do(req)
		if err != nil {
			return err // transient: timeouts, refused connections
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}

		if res.StatusCode >= 500 {
			return &HTTPError{Source: f.source, StatusCode: res.StatusCode, Body: body}
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return retrier.Permanent(&HTTPError{Source: f.source, StatusCode: res.StatusCode, Body: body})
		}

		if err := json.Unmarshal(body, out); err != nil {
			return retrier.Permanent(fmt.Errorf("%s: decode response: %w", f.source, err))
		}
		return nil
	})
}
