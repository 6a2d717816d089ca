package gqlclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productsQuery = `{ products { id name basePrice } }`

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return ts
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestRunner_Run_SendsGraphQLRequest(t *testing.T) {
	var received struct {
		Method        string
		ContentType   string
		Authorization string
		Body          map[string]interface{}
	}

	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		received.Method = r.Method
		received.ContentType = r.Header.Get("Content-Type")
		received.Authorization = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&received.Body)

		writeJSON(w, http.StatusOK, `{"data":{"createProduct":{"id":"1"}}}`)
	})

	runner := New(zlog.Logger, Config{})
	resp, err := runner.Query(context.Background(), ts.URL,
		`mutation Create($input: ProductInput!) { createProduct(input: $input) { id } }`,
		WithVariables(map[string]interface{}{"input": map[string]interface{}{"name": "Tee"}}),
		WithBearerToken("secret"),
	)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, received.Method)
	assert.Equal(t, "application/json", received.ContentType)
	assert.Equal(t, "Bearer secret", received.Authorization)
	assert.Contains(t, received.Body["query"], "createProduct")
	assert.Equal(t, "Create", received.Body["operationName"])
	assert.Equal(t, map[string]interface{}{"input": map[string]interface{}{"name": "Tee"}}, received.Body["variables"])

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.HasData())
	assert.False(t, resp.HasErrors())
}

func TestRunner_Run_WithoutToken(t *testing.T) {
	var authorization []string
	var body map[string]interface{}

	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		authorization = r.Header.Values("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)

		writeJSON(w, http.StatusOK, `{"data":{"products":[]}}`)
	})

	_, err := New(zlog.Logger, Config{}).Query(context.Background(), ts.URL, productsQuery)
	require.NoError(t, err)

	assert.Empty(t, authorization)
	assert.Equal(t, map[string]interface{}{"query": productsQuery}, body)
}

func TestRunner_Run_PassesGraphQLErrorsThrough(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":{"products":null},"errors":[{"message":"boom","path":["products"]}]}`)
	})

	resp, err := New(zlog.Logger, Config{}).Query(context.Background(), ts.URL, productsQuery)
	require.NoError(t, err)

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "boom", resp.Errors[0].Message)
	assert.Equal(t, []interface{}{"products"}, resp.Errors[0].Path)

	var appErr *ApplicationError
	require.True(t, errors.As(resp.Err(), &appErr))
	assert.Len(t, appErr.Errors, 1)
}

func TestRunner_Run_UnreachableEndpoint(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	resp, err := New(zlog.Logger, Config{}).Query(context.Background(), url, productsQuery)
	assert.Nil(t, resp)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, url, transportErr.Endpoint)
	assert.False(t, transportErr.Timeout())
}

func TestRunner_Run_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	resp, err := New(zlog.Logger, Config{Timeout: 50 * time.Millisecond}).Query(context.Background(), ts.URL, productsQuery)
	assert.Nil(t, resp)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.True(t, transportErr.Timeout())
}

type countingTransport struct {
	calls int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&c.calls, 1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestRunner_WithHTTPClient(t *testing.T) {
	release := make(chan struct{})
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	transport := &countingTransport{}
	cli := &http.Client{Transport: transport}

	_, err := New(zlog.Logger, Config{Timeout: 50 * time.Millisecond}, WithHTTPClient(cli)).Query(context.Background(), ts.URL, productsQuery)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.True(t, transportErr.Timeout())
	assert.Equal(t, int32(1), atomic.LoadInt32(&transport.calls))
	assert.Zero(t, cli.Timeout)

	ok := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":{"products":[]}}`)
	})
	resp, err := New(zlog.Logger, Config{Timeout: time.Nanosecond}, WithHTTPClient(&http.Client{Timeout: 5 * time.Second})).
		Query(context.Background(), ok.URL, productsQuery)
	require.NoError(t, err)
	assert.True(t, resp.HasData())
}

func TestRunner_Run_CancelledContext(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":{}}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(zlog.Logger, Config{}).Query(ctx, ts.URL, productsQuery)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunner_Run_NonJSONBody(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "<html>502 Bad Gateway</html>")
	})

	resp, err := New(zlog.Logger, Config{}).Query(context.Background(), ts.URL, productsQuery)
	assert.Nil(t, resp)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, http.StatusOK, parseErr.StatusCode)
	assert.Equal(t, "<html>502 Bad Gateway</html>", string(parseErr.Body))
}

func TestRunner_Run_RejectedByAuthMiddleware(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer valid" {
			writeJSON(w, http.StatusUnauthorized, `{"error":"Unauthorized (invalid token)"}`)
			return
		}

		writeJSON(w, http.StatusOK, `{"data":{"products":[]}}`)
	})

	resp, err := New(zlog.Logger, Config{}).Query(context.Background(), ts.URL, productsQuery, WithBearerToken("invalid-token"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, resp.HasData())
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "Unauthorized (invalid token)", resp.Errors[0].Message)
}

func TestRunner_Run_InvalidDocumentIsNotSent(t *testing.T) {
	var hits int32
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusOK, `{"data":{}}`)
	})

	_, err := New(zlog.Logger, Config{}).Query(context.Background(), ts.URL, `{ products { id `)

	var docErr *DocumentError
	require.True(t, errors.As(err, &docErr))
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestRunner_Run_NilRequest(t *testing.T) {
	_, err := New(zlog.Logger, Config{}).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilRequest)
}

func TestRunner_Run_Concurrent(t *testing.T) {
	const requests = 20

	var hits int32
	ts := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, http.StatusOK, `{"data":{"products":[{"id":"1","name":"Tee","basePrice":19.99}]}}`)
	})

	runner := New(zlog.Logger, Config{MaxRPS: 1000})
	req, err := NewRequest(ts.URL, productsQuery)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = runner.Run(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(requests), atomic.LoadInt32(&hits))
}
