package scenario

import (
	"context"
	"math"

	"github.com/lodthe/graphql-smoketest/pkg/gqlclient"

	"github.com/pkg/errors"
)

const createProductMutation = `mutation CreateProduct($input: ProductInput!) {
	createProduct(input: $input) {
		id
		name
		basePrice
	}
}`

const createProductVariantMutation = `mutation CreateProductVariant($input: ProductVariantInput!) {
	createProductVariant(input: $input) {
		id
		size
		color
		sku
		inventory {
			stockQuantity
		}
	}
}`

const priceEpsilon = 1e-9

type createdProduct struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	BasePrice float64 `json:"basePrice"`
}

type createdVariant struct {
	ID        string `json:"id"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	SKU       string `json:"sku"`
	Inventory *struct {
		StockQuantity int `json:"stockQuantity"`
	} `json:"inventory"`
}

// CreateProductVariant creates a product, then a variant of it, and checks what the API echoes back.
//
// A createProduct response that carries data together with errors is treated as a failure.
type CreateProductVariant struct {
	Product ProductInput
	Variant VariantInput
	Token   string
}

func (s *CreateProductVariant) Name() string {
	return "create-product-variant"
}

func (s *CreateProductVariant) Run(ctx context.Context, runner Runner, endpoint string) error {
	productID, err := s.createProduct(ctx, runner, endpoint)
	if err != nil {
		return err
	}

	return s.createVariant(ctx, runner, endpoint, productID)
}

func (s *CreateProductVariant) createProduct(ctx context.Context, runner Runner, endpoint string) (string, error) {
	input := map[string]interface{}{
		"name":           s.Product.Name,
		"description":    s.Product.Description,
		"designImageURL": s.Product.DesignImageURL,
		"basePrice":      s.Product.BasePrice,
	}

	resp, err := run(ctx, runner, endpoint, createProductMutation,
		gqlclient.WithVariables(map[string]interface{}{"input": input}),
		gqlclient.WithBearerToken(s.Token),
	)
	if err != nil {
		return "", errors.Wrap(err, "createProduct failed")
	}

	var created createdProduct
	err = resp.Decode("createProduct", &created)
	if err != nil {
		return "", unexpected("createProduct: %s", err)
	}

	if created.ID == "" {
		return "", unexpected("createProduct returned an empty id")
	}
	if created.Name != s.Product.Name {
		return "", unexpected("createProduct name is %q, want %q", created.Name, s.Product.Name)
	}
	if math.Abs(created.BasePrice-s.Product.BasePrice) > priceEpsilon {
		return "", unexpected("createProduct basePrice is %v, want %v", created.BasePrice, s.Product.BasePrice)
	}

	return created.ID, nil
}

func (s *CreateProductVariant) createVariant(ctx context.Context, runner Runner, endpoint string, productID string) error {
	input := map[string]interface{}{
		"productID":     productID,
		"size":          s.Variant.Size,
		"color":         s.Variant.Color,
		"priceModifier": s.Variant.PriceModifier,
		"sku":           unique(s.Variant.SKU),
		"stockQuantity": s.Variant.StockQuantity,
	}

	resp, err := run(ctx, runner, endpoint, createProductVariantMutation,
		gqlclient.WithVariables(map[string]interface{}{"input": input}),
		gqlclient.WithBearerToken(s.Token),
	)
	if err != nil {
		return errors.Wrapf(err, "createProductVariant for product %s failed", productID)
	}

	var variant createdVariant
	err = resp.Decode("createProductVariant", &variant)
	if err != nil {
		return unexpected("createProductVariant: %s", err)
	}

	if variant.ID == "" {
		return unexpected("createProductVariant returned an empty id")
	}
	if variant.Inventory == nil {
		return unexpected("createProductVariant returned no inventory")
	}
	if variant.Inventory.StockQuantity != s.Variant.StockQuantity {
		return unexpected("inventory.stockQuantity is %d, want %d", variant.Inventory.StockQuantity, s.Variant.StockQuantity)
	}

	return nil
}
