package scenario

import (
	"context"

	"github.com/lodthe/graphql-smoketest/pkg/gqlclient"

	"github.com/pkg/errors"
)

const productNamesQuery = `query Products {
	products {
		id
		name
	}
}`

// InvalidToken queries products with a bogus bearer token and expects the API to refuse it.
type InvalidToken struct {
	Token string
}

func (s *InvalidToken) Name() string {
	return "invalid-token"
}

func (s *InvalidToken) Run(ctx context.Context, runner Runner, endpoint string) error {
	req, err := gqlclient.NewRequest(endpoint, productNamesQuery, gqlclient.WithBearerToken(s.Token))
	if err != nil {
		return err
	}

	resp, err := runner.Run(ctx, req)
	if err != nil {
		return errors.Wrap(err, "products query failed")
	}

	if !resp.HasErrors() {
		return unexpected("request with an invalid token was accepted")
	}
	if resp.HasData() {
		return unexpected("request with an invalid token returned data")
	}

	return nil
}
