package scenario

import (
	"context"

	"github.com/lodthe/graphql-smoketest/pkg/gqlclient"

	"github.com/pkg/errors"
)

const registerMutation = `mutation Register($input: RegisterInput!) {
	register(input: $input) {
		token
		user {
			id
			email
			name
		}
	}
}`

type authPayload struct {
	Token string `json:"token"`
	User  *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user"`
}

// Register signs up a fresh user and checks that a token is issued for the submitted email.
type Register struct {
	User UserInput
}

func (s *Register) Name() string {
	return "register"
}

func (s *Register) Run(ctx context.Context, runner Runner, endpoint string) error {
	email := uniqueEmail(s.User.Email)

	resp, err := run(ctx, runner, endpoint, registerMutation, gqlclient.WithVariables(map[string]interface{}{
		"input": map[string]interface{}{
			"email":    email,
			"password": s.User.Password,
			"name":     s.User.Name,
		},
	}))
	if err != nil {
		return errors.Wrap(err, "register failed")
	}

	var payload authPayload
	err = resp.Decode("register", &payload)
	if err != nil {
		return unexpected("register: %s", err)
	}

	if payload.Token == "" {
		return unexpected("register returned an empty token")
	}
	if payload.User == nil {
		return unexpected("register returned no user")
	}
	if payload.User.Email != email {
		return unexpected("register user.email is %q, want %q", payload.User.Email, email)
	}

	return nil
}
