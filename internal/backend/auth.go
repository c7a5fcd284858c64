package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	dErrors "inkwell/pkg/domain-errors"
)

// SignIn exchanges credentials for a bearer token. Wrong credentials come back
// as validation errors carrying the backend's message, since there is no
// session to expire yet.
func (c *Client) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	req, err := jsonCall("auth.signin", http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, credentialError(err)
	}
	var out SignInResult
	if err := decodeObject(req.endpoint, body, &out); err != nil {
		return nil, err
	}
	if out.Token == "" || out.User == nil {
		return nil, dErrors.New(dErrors.CodeMalformedResponse, "sign-in response is missing the token or the user")
	}
	return &out, nil
}

func credentialError(err error) error {
	if dErrors.HasCode(err, dErrors.CodeUnauthorized) || dErrors.HasCode(err, dErrors.CodeNotFound) {
		msg := "Incorrect email or password"
		var e *dErrors.Error
		if errors.As(err, &e) && e.Message != "" {
			msg = e.Message
		}
		return &dErrors.Error{Code: dErrors.CodeValidation, Message: msg, Err: err}
	}
	return err
}

// InitiateSignup asks the backend to email a one-time code.
func (c *Client) InitiateSignup(ctx context.Context, email, username, password string) (string, error) {
	return c.postForMessage(ctx, "auth.signup_initiate", "/api/auth/signup/initiate", "", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	})
}

// VerifySignup completes registration with the emailed code.
func (c *Client) VerifySignup(ctx context.Context, email, otp string) (*SignupResult, error) {
	req, err := jsonCall("auth.signup_verify", http.MethodPost, "/api/auth/signup/verify", "", map[string]string{
		"email": email,
		"otp":   otp,
	})
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out SignupResult
	if err := decodeObject(req.endpoint, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ResendOTP(ctx context.Context, email string) (string, error) {
	return c.postForMessage(ctx, "auth.signup_resend", "/api/auth/signup/resend-otp", "", map[string]string{
		"email": email,
	})
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.postForMessage(ctx, "auth.forgot_password", "/api/auth/forgot-password", "", map[string]string{
		"email": email,
	})
}

// VerifyResetToken returns nil when the reset token is still usable.
func (c *Client) VerifyResetToken(ctx context.Context, token string) error {
	_, err := c.do(ctx, call{
		endpoint: "auth.verify_reset_token",
		method:   http.MethodGet,
		path:     "/api/auth/verify-reset-token/" + url.PathEscape(token),
	})
	return err
}

func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	return c.postForMessage(ctx, "auth.reset_password", "/api/auth/reset-password", "", map[string]string{
		"token":       token,
		"newPassword": newPassword,
	})
}

// postForMessage sends a JSON body and returns the backend's confirmation text.
func (c *Client) postForMessage(ctx context.Context, endpoint, path, token string, payload any) (string, error) {
	return c.sendForMessage(ctx, endpoint, http.MethodPost, path, token, payload)
}

func (c *Client) sendForMessage(ctx context.Context, endpoint, method, path, token string, payload any) (string, error) {
	req, err := jsonCall(endpoint, method, path, token, payload)
	if err != nil {
		return "", err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	if msg := backendMessage(body); msg != "" {
		return msg, nil
	}
	return "", nil
}
