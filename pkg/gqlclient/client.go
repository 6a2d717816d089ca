package gqlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/lodthe/graphql-smoketest/internal/metrics"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"
)

type Config struct {
	// Timeout limits a whole exchange. Zero means no limit, callers may still use a context deadline.
	Timeout time.Duration

	// MaxRPS throttles outgoing requests. Zero disables throttling.
	MaxRPS int

	UserAgent string
}

// Runner sends GraphQL requests over HTTP.
// It keeps no state between calls and is safe for concurrent use.
type Runner struct {
	logger zerolog.Logger
	config Config

	rl  ratelimit.Limiter
	cli *http.Client
}

type Option func(r *Runner)

// WithHTTPClient replaces the default HTTP client. The client is copied; Config.Timeout
// applies to the copy unless the client sets its own Timeout.
func WithHTTPClient(cli *http.Client) Option {
	return func(r *Runner) {
		if cli == nil {
			return
		}

		c := *cli
		if c.Timeout == 0 {
			c.Timeout = r.config.Timeout
		}
		r.cli = &c
	}
}

func New(logger zerolog.Logger, config Config, opts ...Option) *Runner {
	r := &Runner{
		logger: logger.With().Str("component", "gqlclient").Logger(),
		config: config,
		cli:    &http.Client{Timeout: config.Timeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	if config.MaxRPS > 0 {
		r.rl = ratelimit.New(config.MaxRPS)
	}

	return r
}

// Query builds a request for the given document and runs it.
func (r *Runner) Query(ctx context.Context, endpoint string, query string, opts ...RequestOption) (*Response, error) {
	req, err := NewRequest(endpoint, query, opts...)
	if err != nil {
		return nil, err
	}

	return r.Run(ctx, req)
}

// Run sends the request and returns the parsed response.
//
// It fails with *TransportError when no complete HTTP response was received and with *ParseError
// when the body is not a GraphQL JSON response. GraphQL errors are returned inside the Response.
// Requests are never retried.
func (r *Runner) Run(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	body, err := json.Marshal(req.payload())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Endpoint: req.endpoint, Err: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	if r.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", r.config.UserAgent)
	}

	if r.rl != nil {
		r.rl.Take()
	}

	operation := string(req.operation)
	startedAt := time.Now()

	resp, err := r.do(httpReq)
	if err != nil {
		metrics.GraphQLClient.Observe(req.endpoint, operation, metrics.OutcomeTransport, startedAt)
		r.logger.Debug().Err(err).Str("endpoint", req.endpoint).Str("operation", req.operationName).Msg("request failed")

		return nil, &TransportError{Endpoint: req.endpoint, Err: err}
	}

	parsed, err := parseResponse(resp.status, resp.body)
	if err != nil {
		metrics.GraphQLClient.Observe(req.endpoint, operation, metrics.OutcomeParse, startedAt)
		r.logger.Debug().Err(err).Str("endpoint", req.endpoint).Int("status", resp.status).Msg("invalid response")

		return nil, err
	}

	outcome := metrics.OutcomeData
	if parsed.HasErrors() {
		outcome = metrics.OutcomeErrors
	}
	metrics.GraphQLClient.Observe(req.endpoint, operation, outcome, startedAt)

	r.logger.Debug().
		Str("endpoint", req.endpoint).
		Str("operation", req.operationName).
		Int("status", resp.status).
		Int("errors", len(parsed.Errors)).
		Dur("elapsed", time.Since(startedAt)).
		Msg("received response")

	return parsed, nil
}

type rawResponse struct {
	status int
	body   []byte
}

func (r *Runner) do(req *http.Request) (*rawResponse, error) {
	resp, err := r.cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "body read failed")
	}

	return &rawResponse{
		status: resp.StatusCode,
		body:   body,
	}, nil
}
