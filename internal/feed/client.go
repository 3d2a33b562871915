package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/metrics"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/orderbook"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/utils"
	"github.com/google/uuid"
)

// LiquiditySource returns the current liquidity of a pool.
type LiquiditySource interface {
	PoolLiquidity(ctx context.Context, baseAsset, quoteAsset string) (*orderbook.LiquiditySnapshot, error)
}

// Client is a JSON-RPC client for the node HTTP endpoint.
type Client struct {
	url     string
	http    *http.Client
	retries int
	backoff time.Duration
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRetries sets the number of attempts per call and the first backoff,
// which doubles after every failed attempt.
func WithRetries(attempts int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.retries = attempts
		}
		c.backoff = backoff
	}
}

func NewClient(url string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		url:     url,
		http:    &http.Client{Timeout: timeout},
		retries: 3,
		backoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PoolLiquidity queries cf_pool_liquidity for the pair.
func (c *Client) PoolLiquidity(ctx context.Context, baseAsset, quoteAsset string) (*orderbook.LiquiditySnapshot, error) {
	var snapshot orderbook.LiquiditySnapshot
	err := c.Call(ctx, MethodPoolLiquidity, liquidityParams{BaseAsset: baseAsset, QuoteAsset: quoteAsset}, &snapshot)
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// Call performs method with retries and decodes the result into out.
// Only transport failures are retried; RPC errors and undecodable results are not.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	logger := utils.GetLogger()
	delay := c.backoff

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		start := time.Now()
		err := c.call(ctx, method, params, out)
		metrics.RPCLatencyMs.WithLabelValues(method).Observe(float64(time.Since(start).Milliseconds()))
		if err == nil {
			return nil
		}
		metrics.RPCErrorsTotal.WithLabelValues(method).Inc()
		lastErr = err

		var rpcErr *RPCError
		if errors.As(err, &rpcErr) || errors.Is(err, orderbook.ErrMalformedFeedPayload) || ctx.Err() != nil {
			break
		}
		logger.Warn().Err(err).Str("method", method).Int("attempt", attempt).Dur("retry_in", delay).Msg("JSON-RPC call failed")
		if attempt == c.retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%s: %w", method, lastErr)
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(Request{
		JSONRPC: jsonRPCVersion,
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var rpcResp Response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("%w: %v", orderbook.ErrMalformedFeedPayload, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return fmt.Errorf("%w: empty result", orderbook.ErrMalformedFeedPayload)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("%w: %v", orderbook.ErrMalformedFeedPayload, err)
	}
	return nil
}
