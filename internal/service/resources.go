package service

import (
	"context"
	"net/http"
)

// Signup creates an account. With validateOnly the backend only validates.
func (c *Client) Signup(ctx context.Context, req SignupRequest, validateOnly bool) Result[Account] {
	return do[Account](ctx, c, http.MethodPost, "/accounts", req, validateOnly)
}

// Signin opens a session and installs its token on the client.
func (c *Client) Signin(ctx context.Context, req SigninRequest) Result[Session] {
	res := do[Session](ctx, c, http.MethodPost, "/sessions", req, false)
	if res.IsOK() {
		c.SetToken(res.Value().Token)
	}
	return res
}

// Signout ends the current session. The local token is cleared regardless
// of the outcome.
func (c *Client) Signout(ctx context.Context) Result[struct{}] {
	res := do[struct{}](ctx, c, http.MethodDelete, "/sessions/current", nil, false)
	c.SetToken("")
	return res
}

// CurrentAccount fetches the account for the current session.
func (c *Client) CurrentAccount(ctx context.Context) Result[Account] {
	return do[Account](ctx, c, http.MethodGet, "/accounts/me", nil, false)
}

// SendVerificationCode emails a verification code to the account's address.
func (c *Client) SendVerificationCode(ctx context.Context, email string) Result[struct{}] {
	return do[struct{}](ctx, c, http.MethodPost, "/accounts/verification", VerificationRequest{Email: email}, false)
}

// ResendVerificationCode asks for a fresh code. Business-rule failures such
// as an already verified address come back as General results.
func (c *Client) ResendVerificationCode(ctx context.Context, email string) Result[struct{}] {
	return do[struct{}](ctx, c, http.MethodPost, "/accounts/verification/resend", VerificationRequest{Email: email}, false)
}

// VerifyEmail confirms the address with the emailed code.
func (c *Client) VerifyEmail(ctx context.Context, code string) Result[Account] {
	return do[Account](ctx, c, http.MethodPost, "/accounts/verification/confirm", VerificationRequest{Code: code}, false)
}

// ReportIncident files an incident.
func (c *Client) ReportIncident(ctx context.Context, in Incident, validateOnly bool) Result[Incident] {
	return do[Incident](ctx, c, http.MethodPost, "/incidents", in, validateOnly)
}

// Categories lists incident categories.
func (c *Client) Categories(ctx context.Context) Result[[]Category] {
	return do[[]Category](ctx, c, http.MethodGet, "/categories", nil, false)
}

// CreateCategory adds an incident category.
func (c *Client) CreateCategory(ctx context.Context, cat Category, validateOnly bool) Result[Category] {
	return do[Category](ctx, c, http.MethodPost, "/categories", cat, validateOnly)
}

// Roles lists roles.
func (c *Client) Roles(ctx context.Context) Result[[]Role] {
	return do[[]Role](ctx, c, http.MethodGet, "/roles", nil, false)
}

// CreateRole adds a role.
func (c *Client) CreateRole(ctx context.Context, role Role, validateOnly bool) Result[Role] {
	return do[Role](ctx, c, http.MethodPost, "/roles", role, validateOnly)
}
