package gqlclient

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	t.Run("null data with errors", func(t *testing.T) {
		resp, err := parseResponse(http.StatusOK, []byte(`{"data":null,"errors":[{"message":"unauthorized"}]}`))
		require.NoError(t, err)

		assert.False(t, resp.HasData())
		assert.True(t, resp.HasErrors())
	})

	t.Run("data and errors together", func(t *testing.T) {
		resp, err := parseResponse(http.StatusOK, []byte(`{"data":{"a":1},"errors":[{"message":"partial"}]}`))
		require.NoError(t, err)

		assert.True(t, resp.HasData())
		assert.True(t, resp.HasErrors())
	})

	t.Run("graphql errors on non-2xx are kept", func(t *testing.T) {
		resp, err := parseResponse(http.StatusUnprocessableEntity, []byte(`{"errors":[{"message":"syntax"}]}`))
		require.NoError(t, err)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "syntax", resp.Errors[0].Message)
	})

	t.Run("status text is used when body has no message", func(t *testing.T) {
		resp, err := parseResponse(http.StatusForbidden, []byte(`{}`))
		require.NoError(t, err)

		require.Len(t, resp.Errors, 1)
		assert.Equal(t, "403 Forbidden", resp.Errors[0].Message)
	})

	for name, body := range map[string]string{
		"empty":            "",
		"array":            `[{"data":{}}]`,
		"plain text":       "ok",
		"truncated":        `{"data":{"products":[`,
		"no data nor errs": `{"extensions":{}}`,
		"data is a list":   `{"data":[1,2]}`,
		"null data alone":  `{"data":null}`,
	} {
		body := body
		t.Run(name, func(t *testing.T) {
			resp, err := parseResponse(http.StatusOK, []byte(body))
			assert.Nil(t, resp)

			var parseErr *ParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestResponse_Decode(t *testing.T) {
	resp, err := parseResponse(http.StatusOK, []byte(`{"data":{
		"createProductVariant":{"id":7,"sku":"TS-M-RED","inventory":{"stockQuantity":100}},
		"products":null
	}}`))
	require.NoError(t, err)

	var variant struct {
		ID        string `json:"id"`
		SKU       string `json:"sku"`
		Inventory struct {
			StockQuantity int `json:"stockQuantity"`
		} `json:"inventory"`
	}
	require.NoError(t, resp.Decode("createProductVariant", &variant))

	assert.Equal(t, "7", variant.ID)
	assert.Equal(t, "TS-M-RED", variant.SKU)
	assert.Equal(t, 100, variant.Inventory.StockQuantity)

	var products []interface{}
	assert.ErrorIs(t, resp.Decode("products", &products), ErrFieldMissing)
	assert.ErrorIs(t, resp.Decode("register", &products), ErrFieldMissing)
}

func TestGraphQLError_Error(t *testing.T) {
	assert.Equal(t, "boom", GraphQLError{Message: "boom"}.Error())
	assert.Equal(t, "boom (path: products.0.name)", GraphQLError{Message: "boom", Path: []interface{}{"products", float64(0), "name"}}.Error())
}
