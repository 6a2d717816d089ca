package gqlclient

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

type OperationType = ast.Operation

const (
	OperationQuery        = ast.Query
	OperationMutation     = ast.Mutation
	OperationSubscription = ast.Subscription
)

// Request is a single GraphQL operation addressed to an endpoint.
// It cannot be changed once built.
type Request struct {
	endpoint      string
	query         string
	operationName string
	variables     map[string]interface{}
	token         string

	operation OperationType
}

type RequestOption func(r *Request)

// WithVariables attaches GraphQL variables. The map is copied.
func WithVariables(vars map[string]interface{}) RequestOption {
	return func(r *Request) {
		if len(vars) == 0 {
			return
		}

		r.variables = make(map[string]interface{}, len(vars))
		for k, v := range vars {
			r.variables[k] = v
		}
	}
}

// WithBearerToken makes the request carry the "Authorization: Bearer <token>" header.
func WithBearerToken(token string) RequestOption {
	return func(r *Request) {
		r.token = strings.TrimPrefix(token, "Bearer ")
	}
}

// WithOperationName selects an operation when the document declares several of them.
func WithOperationName(name string) RequestOption {
	return func(r *Request) {
		r.operationName = name
	}
}

// NewRequest validates the document and builds a request.
// A document that cannot be parsed results in *DocumentError.
func NewRequest(endpoint string, query string, opts ...RequestOption) (*Request, error) {
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	r := &Request{
		endpoint: endpoint,
		query:    query,
	}
	for _, opt := range opts {
		opt(r)
	}

	op, err := selectOperation(query, r.operationName)
	if err != nil {
		return nil, &DocumentError{Err: err}
	}

	r.operation = op.Operation
	if r.operationName == "" {
		r.operationName = op.Name
	}

	return r, nil
}

func (r *Request) Endpoint() string {
	return r.endpoint
}

func (r *Request) Query() string {
	return r.query
}

func (r *Request) OperationName() string {
	return r.operationName
}

func (r *Request) Operation() OperationType {
	return r.operation
}

func (r *Request) Token() string {
	return r.token
}

// Variables returns a copy of the request variables.
func (r *Request) Variables() map[string]interface{} {
	if r.variables == nil {
		return nil
	}

	vars := make(map[string]interface{}, len(r.variables))
	for k, v := range r.variables {
		vars[k] = v
	}

	return vars
}

type payload struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName,omitempty"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

func (r *Request) payload() payload {
	return payload{
		Query:         r.query,
		OperationName: r.operationName,
		Variables:     r.variables,
	}
}

// selectOperation parses the document and returns the operation to be executed.
func selectOperation(query string, name string) (*ast.OperationDefinition, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return nil, err
	}

	switch {
	case len(doc.Operations) == 0:
		return nil, errors.New("document contains no operations")

	case name != "":
		op := doc.Operations.ForName(name)
		if op == nil {
			return nil, errors.Errorf("operation %q is not defined", name)
		}

		return op, nil

	case len(doc.Operations) > 1:
		return nil, errors.New("operation name is required when the document has several operations")

	default:
		return doc.Operations[0], nil
	}
}
