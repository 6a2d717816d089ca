package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/lodthe/graphql-smoketest/internal/authtoken"
	"github.com/lodthe/graphql-smoketest/internal/scenario"
	"github.com/lodthe/graphql-smoketest/internal/stubserver"
	"github.com/lodthe/graphql-smoketest/pkg/gqlclient"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultToken_UnlocksCatalogueMutations(t *testing.T) {
	cfg := &Config{
		Smoke: Smoke{Params: scenario.DefaultParams},
		Auth:  Auth{JWTSecret: "shared-secret"},
	}
	require.NoError(t, cfg.validate())

	token := defaultToken(cfg)
	require.NotEmpty(t, token)

	issuer, err := authtoken.NewIssuer("shared-secret", cfg.Auth.TokenTTL)
	require.NoError(t, err)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, stubserver.RoleAdmin, claims.Role)
	assert.Equal(t, "admin@example.com", claims.Email)

	ts := httptest.NewServer(stubserver.New(zerolog.Nop(), stubserver.Config{}, issuer).Handler())
	t.Cleanup(ts.Close)

	params := cfg.Smoke.Params
	params.Token = token
	s := &scenario.CreateProductVariant{Product: params.Product, Variant: params.Variant, Token: params.Token}

	runner := gqlclient.New(zerolog.Nop(), gqlclient.Config{})
	assert.NoError(t, s.Run(context.Background(), runner, ts.URL+"/query"))
}
