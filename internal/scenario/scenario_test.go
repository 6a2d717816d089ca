package scenario

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lodthe/graphql-smoketest/internal/authtoken"
	"github.com/lodthe/graphql-smoketest/internal/stubserver"
	"github.com/lodthe/graphql-smoketest/pkg/gqlclient"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startStub returns the stub endpoint and default params carrying an admin token it accepts.
func startStub(t *testing.T) (string, Params) {
	t.Helper()

	issuer, err := authtoken.NewIssuer("scenario-secret", time.Hour)
	require.NoError(t, err)

	ts := httptest.NewServer(stubserver.New(zlog.Logger, stubserver.Config{SeedProducts: 3}, issuer).Handler())
	t.Cleanup(ts.Close)

	params := DefaultParams
	params.Token, err = issuer.Mint(1, "admin@example.com", stubserver.RoleAdmin)
	require.NoError(t, err)

	return ts.URL + "/query", params
}

func startFake(t *testing.T, body string) string {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)

	return ts.URL
}

func newRunner() *gqlclient.Runner {
	return gqlclient.New(zlog.Logger, gqlclient.Config{Timeout: 5 * time.Second})
}

func TestScenarios_PassAgainstStub(t *testing.T) {
	endpoint, params := startStub(t)
	runner := newRunner()

	scenarios, err := Select(nil, params)
	require.NoError(t, err)
	require.Len(t, scenarios, 4)

	for _, s := range scenarios {
		s := s
		t.Run(s.Name(), func(t *testing.T) {
			assert.NoError(t, s.Run(context.Background(), runner, endpoint))
		})
	}
}

func TestRegister_RepeatedRunsUseFreshEmails(t *testing.T) {
	endpoint, _ := startStub(t)
	runner := newRunner()

	s := &Register{User: DefaultParams.User}
	require.NoError(t, s.Run(context.Background(), runner, endpoint))
	require.NoError(t, s.Run(context.Background(), runner, endpoint))
}

// recordingRunner captures requests to check what scenarios send.
type recordingRunner struct {
	runner   Runner
	requests []*gqlclient.Request
}

func (r *recordingRunner) Run(ctx context.Context, req *gqlclient.Request) (*gqlclient.Response, error) {
	r.requests = append(r.requests, req)
	return r.runner.Run(ctx, req)
}

func TestCreateProductVariant_SendsVariables(t *testing.T) {
	endpoint, params := startStub(t)
	rec := &recordingRunner{runner: newRunner()}

	product := params.Product
	product.Name = `Quote " and } brace`

	s := &CreateProductVariant{Product: product, Variant: params.Variant, Token: params.Token}
	require.NoError(t, s.Run(context.Background(), rec, endpoint))

	require.Len(t, rec.requests, 2)
	for _, req := range rec.requests {
		assert.Equal(t, gqlclient.OperationMutation, req.Operation())
		assert.NotContains(t, req.Query(), product.Name)
	}

	input := rec.requests[1].Variables()["input"].(map[string]interface{})
	assert.NotEmpty(t, input["productID"])
	assert.True(t, strings.HasPrefix(input["sku"].(string), "TS-M-RED-"))
}

func TestCreateProductVariant_AnonymousRejected(t *testing.T) {
	endpoint, params := startStub(t)

	s := &CreateProductVariant{Product: params.Product, Variant: params.Variant}
	err := s.Run(context.Background(), newRunner(), endpoint)

	assert.ErrorIs(t, err, ErrUnexpectedResponse)
	assert.Contains(t, err.Error(), stubserver.ErrAdminRequired.Error())
}

func TestCreateProductVariant_PartialErrorsFail(t *testing.T) {
	endpoint := startFake(t, `{"data":{"createProduct":{"id":"1","name":"Test T-Shirt","basePrice":19.99}},"errors":[{"message":"image upload failed"}]}`)

	s := &CreateProductVariant{Product: DefaultParams.Product, Variant: DefaultParams.Variant}
	err := s.Run(context.Background(), newRunner(), endpoint)

	assert.ErrorIs(t, err, ErrUnexpectedResponse)
	assert.Contains(t, err.Error(), "image upload failed")
}

func TestCreateProductVariant_PriceMismatch(t *testing.T) {
	endpoint := startFake(t, `{"data":{"createProduct":{"id":"1","name":"Test T-Shirt","basePrice":20}}}`)

	s := &CreateProductVariant{Product: DefaultParams.Product, Variant: DefaultParams.Variant}
	err := s.Run(context.Background(), newRunner(), endpoint)

	assert.ErrorIs(t, err, ErrUnexpectedResponse)
	assert.Contains(t, err.Error(), "basePrice")
}

func TestProducts_NullField(t *testing.T) {
	endpoint := startFake(t, `{"data":{"products":[{"id":"1","name":null,"basePrice":1}]}}`)

	err := (&Products{}).Run(context.Background(), newRunner(), endpoint)

	assert.ErrorIs(t, err, ErrUnexpectedResponse)
	assert.Contains(t, err.Error(), "products[0].name")
}

func TestInvalidToken_AcceptedTokenFails(t *testing.T) {
	endpoint := startFake(t, `{"data":{"products":[]}}`)

	err := (&InvalidToken{Token: "invalid-token"}).Run(context.Background(), newRunner(), endpoint)
	assert.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestInvalidToken_GraphQLStyleRejection(t *testing.T) {
	endpoint := startFake(t, `{"data":null,"errors":[{"message":"Invalid token"}]}`)

	err := (&InvalidToken{Token: "invalid-token"}).Run(context.Background(), newRunner(), endpoint)
	assert.NoError(t, err)
}

func TestScenario_TransportFailureIsKept(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	endpoint := ts.URL
	ts.Close()

	err := (&Products{}).Run(context.Background(), newRunner(), endpoint)

	var transportErr *gqlclient.TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestSelect(t *testing.T) {
	scenarios, err := Select([]string{"register", "products"}, DefaultParams)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "register", scenarios[0].Name())
	assert.Equal(t, "products", scenarios[1].Name())

	_, err = Select([]string{"orders"}, DefaultParams)
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestUniqueEmail(t *testing.T) {
	email := uniqueEmail("smoke@example.com")
	assert.True(t, strings.HasPrefix(email, "smoke+"))
	assert.True(t, strings.HasSuffix(email, "@example.com"))
	assert.NotEqual(t, email, uniqueEmail("smoke@example.com"))
}
