package backend

import (
	"context"
	"net/http"

	dErrors "inkwell/pkg/domain-errors"
)

// ListUsers returns every account. The backend answers 404 with a message
// when there are none; that is an empty list here.
func (c *Client) ListUsers(ctx context.Context, token string) ([]User, error) {
	req := call{endpoint: "admin.list_users", method: http.MethodGet, path: "/api/admin/getallusers", token: token}
	body, err := c.do(ctx, req)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return []User{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeList[User](req.endpoint, body)
}

func (c *Client) AddUser(ctx context.Context, token string, user NewUser) (string, error) {
	return c.postForMessage(ctx, "admin.add_user", "/api/admin/adduser", token, user.payload())
}

func (c *Client) UpdateUser(ctx context.Context, token string, update UserUpdate) (string, error) {
	if update.Email == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return c.postForMessage(ctx, "admin.update_user", "/api/admin/updateuser", token, update.payload())
}

func (c *Client) DeleteUser(ctx context.Context, token, email string) (string, error) {
	if email == "" {
		return "", dErrors.New(dErrors.CodeValidation, "email is required")
	}
	return c.sendForMessage(ctx, "admin.delete_user", http.MethodDelete, "/api/admin/deleteuser", token, map[string]string{
		"email": email,
	})
}
