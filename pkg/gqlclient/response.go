package gqlclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Response is a GraphQL response as returned by the server.
// GraphQL-level errors are kept in Errors and are not treated as a failure of the exchange.
type Response struct {
	Data       map[string]interface{} `json:"data,omitempty"`
	Errors     []GraphQLError         `json:"errors,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`

	StatusCode int             `json:"-"`
	Raw        json.RawMessage `json:"-"`
}

type GraphQLError struct {
	Message    string                 `json:"message"`
	Path       []interface{}          `json:"path,omitempty"`
	Locations  []Location             `json:"locations,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (e GraphQLError) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}

	parts := make([]string, 0, len(e.Path))
	for _, p := range e.Path {
		parts = append(parts, fmt.Sprint(p))
	}

	return fmt.Sprintf("%s (path: %s)", e.Message, strings.Join(parts, "."))
}

func (r *Response) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasData reports whether data is present and not null.
func (r *Response) HasData() bool {
	return r.Data != nil
}

// Err returns the GraphQL errors as *ApplicationError, or nil when there are none.
func (r *Response) Err() error {
	if !r.HasErrors() {
		return nil
	}

	return &ApplicationError{Errors: r.Errors}
}

// Decode copies data[field] into v. JSON tags of v are respected.
func (r *Response) Decode(field string, v interface{}) error {
	value, ok := r.Data[field]
	if !ok || value == nil {
		return errors.Wrap(ErrFieldMissing, field)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           v,
	})
	if err != nil {
		return errors.Wrap(err, "decoder cannot be created")
	}

	err = decoder.Decode(value)
	if err != nil {
		return errors.Wrapf(err, "%s cannot be decoded", field)
	}

	return nil
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Errors     []GraphQLError         `json:"errors"`
	Extensions map[string]interface{} `json:"extensions"`

	// Some servers answer outside the GraphQL layer, e.g. auth middlewares.
	Error   string `json:"error"`
	Message string `json:"message"`
}

func isSuccessful(status int) bool {
	return status >= 200 && status < 300
}

// parseResponse builds a Response from a raw HTTP body.
//
// A non-2xx answer without GraphQL errors gets a single synthesized error,
// so the caller always sees why the request was rejected.
func parseResponse(status int, body []byte) (*Response, error) {
	fail := func(err error) (*Response, error) {
		return nil, &ParseError{StatusCode: status, Body: body, Err: err}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fail(errors.New("empty body"))
	}
	if trimmed[0] != '{' {
		return fail(errors.New("body is not a json object"))
	}

	var env envelope
	err := json.Unmarshal(trimmed, &env)
	if err != nil {
		return fail(err)
	}

	resp := &Response{
		Errors:     env.Errors,
		Extensions: env.Extensions,
		StatusCode: status,
		Raw:        json.RawMessage(trimmed),
	}

	hasDataKey := len(env.Data) > 0
	if hasDataKey && !bytes.Equal(env.Data, []byte("null")) {
		err = json.Unmarshal(env.Data, &resp.Data)
		if err != nil {
			return fail(errors.Wrap(err, "data is not an object"))
		}
	}

	if !isSuccessful(status) && len(resp.Errors) == 0 {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("%d %s", status, http.StatusText(status))
		}

		resp.Errors = []GraphQLError{{
			Message: msg,
			Extensions: map[string]interface{}{
				"status": status,
			},
		}}
	}

	if !resp.HasData() && len(resp.Errors) == 0 {
		return fail(errors.New("response carries neither data nor errors"))
	}

	return resp, nil
}
