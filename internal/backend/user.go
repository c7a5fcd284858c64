package backend

import (
	"context"
	"net/http"

	dErrors "inkwell/pkg/domain-errors"
)

// GetUserDetails returns the profile behind token.
func (c *Client) GetUserDetails(ctx context.Context, token string) (*User, error) {
	req := call{endpoint: "user.details", method: http.MethodGet, path: "/api/user/getuserdetails", token: token}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out User
	if err := decodeObject(req.endpoint, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile changes the username and optionally the profile image.
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (string, error) {
	form := newForm()
	form.jsonPart("user", update)
	form.file("image", update.Image)
	body, contentType, err := form.finish()
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, call{
		endpoint:    "user.update",
		method:      http.MethodPost,
		path:        "/api/user/updateuser",
		token:       token,
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return backendMessage(resp), nil
}

func (c *Client) UpdatePassword(ctx context.Context, token, password string) (string, error) {
	return c.postForMessage(ctx, "user.update_password", "/api/user/updatepassword", token, map[string]string{
		"password": password,
	})
}

func (c *Client) DeleteAccount(ctx context.Context, token string) error {
	_, err := c.do(ctx, call{endpoint: "user.delete", method: http.MethodDelete, path: "/api/user/deleteaccount", token: token})
	return err
}

// InitiateEmailUpdate sends a code to the new address.
func (c *Client) InitiateEmailUpdate(ctx context.Context, token, newEmail string) (string, error) {
	return c.postForMessage(ctx, "user.email_initiate", "/api/user/email/update/initiate", token, map[string]string{
		"email": newEmail,
	})
}

// VerifyEmailUpdate confirms the code and returns the token re-issued for the
// new address. The old token stops identifying the user.
func (c *Client) VerifyEmailUpdate(ctx context.Context, token, otp string) (string, error) {
	req, err := jsonCall("user.email_verify", http.MethodPost, "/api/user/email/update/verify", token, map[string]string{
		"otp": otp,
	})
	if err != nil {
		return "", err
	}
	body, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := decodeObject(req.endpoint, body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", dErrors.New(dErrors.CodeMalformedResponse, "email update response is missing the token")
	}
	return out.Token, nil
}
