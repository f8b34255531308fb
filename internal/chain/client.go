// Package chain holds the providers behind the risk checks that look past
// price quotes: on-chain Chainlink feed reads, contract security screening
// and sell-transaction simulation.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/speraxos/sweepguard/pkg/retrier"
)

// ContractCaller is the subset of the Ethereum RPC used by the feed reader.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial initialises an EVM RPC client for the provided endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, errors.New("evm endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// restClient is the HTTP plumbing shared by the screener and the simulator:
// rate limit, uniform retry policy, transient/permanent classification.
type restClient struct {
	name    string
	client  *http.Client
	limiter *rate.Limiter
	retry   *retrier.Retrier
}

func newRESTClient(name string, timeout time.Duration, rps float64, retry *retrier.Retrier) *restClient {
	if retry == nil {
		retry = retrier.New()
	}
	return &restClient{
		name:    name,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   retry,
	}
}

// doJSON issues the request and decodes the body into out. Network errors and
// 5xx responses are retried per policy; 4xx responses and undecodable bodies
// are permanent failures for this call.
func (c *restClient) doJSON(ctx context.Context, method, url string, body io.Reader, out any) error {
	var payload []byte
	if body != nil {
		b, err := io.ReadAll(body)
		if err != nil {
			return retrier.Permanent(err)
		}
		payload = b
	}

	return c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retrier.Permanent(err)
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = strings.NewReader(string(payload))
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
		if err != nil {
			return retrier.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		res, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}

		if res.StatusCode >= 500 {
			return fmt.Errorf("%s http %d: %s", c.name, res.StatusCode, strings.TrimSpace(string(raw)))
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return retrier.Permanent(fmt.Errorf("%s http %d: %s", c.name, res.StatusCode, strings.TrimSpace(string(raw))))
		}

		if err := json.Unmarshal(raw, out); err != nil {
			return retrier.Permanent(fmt.Errorf("%s: decode response: %w", c.name, err))
		}
		return nil
	})
}
