package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"encounter-recs/internal/metrics"
)

// ErrUpstreamUnavailable agrupa cualquier fallo de un catalogo externo.
// Nunca sale de este paquete: los adaptadores lo convierten en un resultado vacio.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

const maxResponseBytes = 4 << 20

// ClientOptions configura el cliente HTTP compartido por los adaptadores.
type ClientOptions struct {
	Timeout    time.Duration
	RPS        float64
	Burst      int
	HTTPClient *http.Client
}

// client envuelve net/http con rate limit y circuit breaker por fuente.
type client struct {
	name    string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

func newClient(name string, opts ClientOptions, logger *zap.Logger) *client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	metrics.BreakerState.WithLabelValues(name).Set(0)
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Cancelacion o deadline del caller no dicen nada de la salud del proveedor. El timeout
		// propio llega envuelto en ErrUpstreamUnavailable y si cuenta como fallo.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream breaker state change",
				zap.String("source", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &client{
		name:    name,
		http:    httpClient,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
		breaker: breaker,
		logger:  logger,
	}
}

// getJSON hace un GET y decodifica el cuerpo en out.
func (c *client) getJSON(ctx context.Context, endpoint string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", c.name, err)
	}

	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, query)
	})
	metrics.RecordUpstream(c.name, statusLabel(err), time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUpstreamUnavailable, c.name, err)
	}
	return nil
}

func (c *client) do(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s request: %v", ErrUpstreamUnavailable, c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrUpstreamUnavailable, c.name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s status=%d", ErrUpstreamUnavailable, c.name, resp.StatusCode)
	}
	return body, nil
}

// absorb registra el fallo. El adaptador responde con lista vacia.
func (c *client) absorb(keyword string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Debug("upstream search abandoned", zap.String("source", c.name), zap.String("keyword", keyword))
		return
	}
	c.logger.Warn("upstream search failed",
		zap.String("source", c.name),
		zap.String("keyword", keyword),
		zap.Error(err),
	)
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "rejected"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
