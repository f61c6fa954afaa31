package api

import (
	"context"
	"net/http"

	"finconsole/internal/core"
)

// LoginResult is the data block of a successful login.
type LoginResult struct {
	User  core.User `json:"user"`
	Token string    `json:"token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, in core.LoginInput) (LoginResult, error) {
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/user/login", in, &out); err != nil {
		return LoginResult{}, err
	}
	if out.Token == "" {
		return LoginResult{}, &Error{Kind: KindServerNoBody, Status: http.StatusOK, Message: MsgInvalidData}
	}
	return out, nil
}

// Register creates a user account. It does not log the user in.
func (c *Client) Register(ctx context.Context, in core.RegisterInput) (core.User, error) {
	var out core.User
	err := c.do(ctx, http.MethodPost, "/api/user/register", in, &out)
	return out, err
}
