package scenario

import (
	"context"

	"github.com/pkg/errors"
)

const productsQuery = `query Products {
	products {
		id
		name
		basePrice
	}
}`

type product struct {
	ID        *string  `json:"id"`
	Name      *string  `json:"name"`
	BasePrice *float64 `json:"basePrice"`
}

// Products lists the catalogue and checks that every product has id, name and basePrice.
type Products struct{}

func (s *Products) Name() string {
	return "products"
}

func (s *Products) Run(ctx context.Context, runner Runner, endpoint string) error {
	resp, err := run(ctx, runner, endpoint, productsQuery)
	if err != nil {
		return errors.Wrap(err, "products query failed")
	}

	var products []product
	err = resp.Decode("products", &products)
	if err != nil {
		return unexpected("products: %s", err)
	}

	for i, p := range products {
		switch {
		case p.ID == nil:
			return unexpected("products[%d].id is null", i)
		case p.Name == nil:
			return unexpected("products[%d].name is null", i)
		case p.BasePrice == nil:
			return unexpected("products[%d].basePrice is null", i)
		}
	}

	return nil
}
