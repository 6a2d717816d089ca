package stubserver

import (
	"context"
	"crypto/subtle"

	"github.com/lodthe/graphql-smoketest/internal/authtoken"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
)

var ErrProductNotFound = errors.New("product not found")
var ErrSKUExists = errors.New("sku already exists")
var ErrUserExists = errors.New("user already exists")
var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrAdminRequired = errors.New("unauthorized: admin access required")

const RoleAdmin = "admin"

type resolveParams struct {
	field  *ast.Field
	vars   map[string]interface{}
	claims *authtoken.Claims
}

type resolver func(ctx context.Context, p resolveParams) (interface{}, error)

func (s *Server) resolvers() map[ast.Operation]map[string]resolver {
	return map[ast.Operation]map[string]resolver{
		ast.Query: {
			"products": s.listProducts,
			"product":  s.product,
			"me":       s.me,
		},
		ast.Mutation: {
			"createProduct":        s.createProduct,
			"createProductVariant": s.createProductVariant,
			"register":             s.register,
			"login":                s.login,
		},
	}
}

// argument evaluates a field argument against the request variables and decodes it into v.
func argument(p resolveParams, name string, v interface{}) error {
	arg := p.field.Arguments.ForName(name)
	if arg == nil {
		return errors.Errorf("argument %q is required", name)
	}

	value, err := arg.Value.Value(p.vars)
	if err != nil {
		return errors.Wrapf(err, "argument %q is invalid", name)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           v,
	})
	if err != nil {
		return err
	}

	return errors.Wrapf(decoder.Decode(value), "argument %q cannot be decoded", name)
}

// requireAdmin guards catalogue mutations.
func requireAdmin(p resolveParams) error {
	if p.claims == nil || p.claims.Role != RoleAdmin {
		return ErrAdminRequired
	}

	return nil
}

func (s *Server) listProducts(_ context.Context, p resolveParams) (interface{}, error) {
	var isActive *bool
	if arg := p.field.Arguments.ForName("isActive"); arg != nil {
		value, err := arg.Value.Value(p.vars)
		if err != nil {
			return nil, errors.Wrap(err, `argument "isActive" is invalid`)
		}
		if b, ok := value.(bool); ok {
			isActive = &b
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]interface{}, 0, len(s.products))
	for _, product := range s.productList {
		if isActive != nil && product.IsActive != *isActive {
			continue
		}

		list = append(list, product.toMap())
	}

	return list, nil
}

func (s *Server) product(_ context.Context, p resolveParams) (interface{}, error) {
	var id string
	err := argument(p, "id", &id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}

	return product.toMap(), nil
}

func (s *Server) me(_ context.Context, p resolveParams) (interface{}, error) {
	if p.claims == nil {
		return nil, errors.New("unauthorized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[p.claims.Email]
	if !ok {
		return nil, errors.New("user not found")
	}

	return user.toMap(), nil
}

func (s *Server) createProduct(_ context.Context, p resolveParams) (interface{}, error) {
	err := requireAdmin(p)
	if err != nil {
		return nil, err
	}

	var input productInput
	err = argument(p, "input", &input)
	if err != nil {
		return nil, err
	}

	if input.Name == "" {
		return nil, errors.New("name is required")
	}
	if input.BasePrice == nil || *input.BasePrice < 0 {
		return nil, errors.New("basePrice must be a non-negative number")
	}

	product := &Product{
		ID:             uuid.NewString(),
		Name:           input.Name,
		Description:    input.Description,
		DesignImageURL: input.DesignImageURL,
		BasePrice:      *input.BasePrice,
		IsActive:       true,
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	s.addProduct(product)

	s.logger.Debug().Str("id", product.ID).Str("name", product.Name).Msg("product has been created")

	return product.toMap(), nil
}

func (s *Server) createProductVariant(_ context.Context, p resolveParams) (interface{}, error) {
	err := requireAdmin(p)
	if err != nil {
		return nil, err
	}

	var input variantInput
	err = argument(p, "input", &input)
	if err != nil {
		return nil, err
	}

	if input.SKU == "" {
		return nil, errors.New("sku is required")
	}
	if input.StockQuantity < 0 {
		return nil, errors.New("stockQuantity must be non-negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[input.ProductID]
	if !ok {
		return nil, errors.Wrap(ErrProductNotFound, input.ProductID)
	}
	if _, exists := s.skus[input.SKU]; exists {
		return nil, errors.Wrap(ErrSKUExists, input.SKU)
	}

	variant := &Variant{
		ID:            uuid.NewString(),
		ProductID:     product.ID,
		Size:          input.Size,
		Color:         input.Color,
		PriceModifier: input.PriceModifier,
		SKU:           input.SKU,
		StockQuantity: input.StockQuantity,
	}
	product.Variants = append(product.Variants, variant)
	s.skus[variant.SKU] = struct{}{}

	return variant.toMap(), nil
}

func (s *Server) register(_ context.Context, p resolveParams) (interface{}, error) {
	var input registerInput
	err := argument(p, "input", &input)
	if err != nil {
		return nil, err
	}

	if input.Email == "" || input.Password == "" {
		return nil, errors.New("email and password are required")
	}

	user, err := func() (*User, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, exists := s.users[input.Email]; exists {
			return nil, ErrUserExists
		}

		s.lastUserID++
		user := &User{
			ID:       s.lastUserID,
			Email:    input.Email,
			Name:     input.Name,
			Role:     "user",
			Password: input.Password,
		}
		s.users[user.Email] = user

		return user, nil
	}()
	if err != nil {
		return nil, err
	}

	return s.authPayload(user)
}

func (s *Server) login(_ context.Context, p resolveParams) (interface{}, error) {
	var input loginInput
	err := argument(p, "input", &input)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	user, ok := s.users[input.Email]
	s.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare([]byte(user.Password), []byte(input.Password)) != 1 {
		return nil, ErrInvalidCredentials
	}

	return s.authPayload(user)
}

func (s *Server) authPayload(user *User) (interface{}, error) {
	token, err := s.issuer.Mint(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, errors.Wrap(err, "token cannot be generated")
	}

	return map[string]interface{}{
		"token": token,
		"user":  user.toMap(),
	}, nil
}
