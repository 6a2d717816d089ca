package gqlclient

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
)

var ErrNilRequest = errors.New("nil request")
var ErrFieldMissing = errors.New("field is missing in response data")

// TransportError is returned when the request never produced a complete HTTP response:
// connection refused, DNS failure, timeout, cancelled context, broken body.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure (%s): %s", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was caused by a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// ParseError is returned when the endpoint answered with a body that is not a GraphQL JSON response.
type ParseError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid response body (status %d): %s", e.StatusCode, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DocumentError is returned when a GraphQL document cannot be parsed locally.
// No request is sent in this case.
type DocumentError struct {
	Err error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("invalid graphql document: %s", e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// ApplicationError holds the GraphQL errors returned by a server.
// The runner never returns it by itself, it is produced by Response.Err on demand.
type ApplicationError struct {
	Errors []GraphQLError
}

func (e *ApplicationError) Error() string {
	messages := make([]string, 0, len(e.Errors))
	for _, gqlErr := range e.Errors {
		messages = append(messages, gqlErr.Error())
	}

	return "graphql errors: " + strings.Join(messages, "; ")
}
