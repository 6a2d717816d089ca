// Package scenario contains the end-to-end checks run against the shop GraphQL API.
//
// A scenario issues one or more requests and verifies the shape of the responses.
// Run returns nil when the scenario passed. Values are always sent as GraphQL variables.
package scenario

import (
	"context"
	"sort"
	"strings"

	"github.com/lodthe/graphql-smoketest/pkg/gqlclient"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrUnknownScenario = errors.New("unknown scenario")

// ErrUnexpectedResponse marks a response that was received but did not pass the checks.
var ErrUnexpectedResponse = errors.New("unexpected response")

type Runner interface {
	Run(ctx context.Context, req *gqlclient.Request) (*gqlclient.Response, error)
}

type Scenario interface {
	Name() string
	Run(ctx context.Context, runner Runner, endpoint string) error
}

type ProductInput struct {
	Name           string  `mapstructure:"name"`
	Description    string  `mapstructure:"description"`
	DesignImageURL string  `mapstructure:"design_image_url"`
	BasePrice      float64 `mapstructure:"base_price"`
}

type VariantInput struct {
	Size          string  `mapstructure:"size"`
	Color         string  `mapstructure:"color"`
	PriceModifier float64 `mapstructure:"price_modifier"`
	SKU           string  `mapstructure:"sku"`
	StockQuantity int     `mapstructure:"stock_quantity"`
}

type UserInput struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// Params are the values scenarios submit.
type Params struct {
	Product ProductInput `mapstructure:"product"`
	Variant VariantInput `mapstructure:"variant"`
	User    UserInput    `mapstructure:"user"`

	// Token is attached to requests that change the catalogue. Empty means anonymous.
	Token string `mapstructure:"token"`

	// InvalidToken is the bearer token expected to be rejected.
	InvalidToken string `mapstructure:"invalid_token"`
}

var DefaultParams = Params{
	Product: ProductInput{
		Name:           "Test T-Shirt",
		Description:    "A beautiful test t-shirt",
		DesignImageURL: "https://example.com/image.jpg",
		BasePrice:      19.99,
	},
	Variant: VariantInput{
		Size:          "M",
		Color:         "Red",
		PriceModifier: 0,
		SKU:           "TS-M-RED",
		StockQuantity: 100,
	},
	User: UserInput{
		Email:    "smoke@example.com",
		Password: "password123",
		Name:     "Smoke Test",
	},
	InvalidToken: "invalid-token",
}

// Catalog returns all known scenarios keyed by name.
func Catalog(params Params) map[string]Scenario {
	all := []Scenario{
		&Products{},
		&CreateProductVariant{Product: params.Product, Variant: params.Variant, Token: params.Token},
		&Register{User: params.User},
		&InvalidToken{Token: params.InvalidToken},
	}

	catalog := make(map[string]Scenario, len(all))
	for _, s := range all {
		catalog[s.Name()] = s
	}

	return catalog
}

// Names returns sorted names of all known scenarios.
func Names() []string {
	var names []string
	for name := range Catalog(DefaultParams) {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Select picks scenarios by name keeping the given order. No names means every scenario.
func Select(names []string, params Params) ([]Scenario, error) {
	catalog := Catalog(params)
	if len(names) == 0 {
		names = Names()
	}

	selected := make([]Scenario, 0, len(names))
	for _, name := range names {
		s, ok := catalog[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownScenario, "%s (supported: %s)", name, strings.Join(Names(), ", "))
		}

		selected = append(selected, s)
	}

	return selected, nil
}

// run sends a request and requires a response without GraphQL errors.
func run(ctx context.Context, runner Runner, endpoint string, query string, opts ...gqlclient.RequestOption) (*gqlclient.Response, error) {
	req, err := gqlclient.NewRequest(endpoint, query, opts...)
	if err != nil {
		return nil, err
	}

	resp, err := runner.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.HasErrors() {
		return resp, errors.Wrap(ErrUnexpectedResponse, resp.Err().Error())
	}

	return resp, nil
}

func unexpected(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnexpectedResponse, format, args...)
}

// unique appends a short random suffix, so repeated runs do not clash on unique columns.
func unique(value string) string {
	return value + "-" + uuid.NewString()[:8]
}

func uniqueEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found {
		return unique(email)
	}

	return local + "+" + uuid.NewString()[:8] + "@" + domain
}
