package backend

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	dErrors "inkwell/pkg/domain-errors"
)

// ListContent returns every post. Public.
func (c *Client) ListContent(ctx context.Context, token string) ([]Content, error) {
	return c.listContent(ctx, call{endpoint: "content.list", method: http.MethodGet, path: "/api/content/getallcontent", token: token})
}

// ListMyContent returns the posts of the user behind token.
func (c *Client) ListMyContent(ctx context.Context, token string) ([]Content, error) {
	return c.listContent(ctx, call{endpoint: "content.mine", method: http.MethodGet, path: "/api/content/user", token: token})
}

func (c *Client) ListContentByAuthor(ctx context.Context, token string, authorID int) ([]Content, error) {
	return c.listContent(ctx, call{
		endpoint: "content.by_author",
		method:   http.MethodGet,
		path:     "/api/content/author/" + strconv.Itoa(authorID),
		token:    token,
	})
}

func (c *Client) listContent(ctx context.Context, req call) ([]Content, error) {
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeList[Content](req.endpoint, body)
}

func (c *Client) GetContent(ctx context.Context, token string, id int) (*Content, error) {
	req := call{endpoint: "content.get", method: http.MethodGet, path: "/api/content/" + strconv.Itoa(id), token: token}
	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	var out Content
	if err := decodeObject(req.endpoint, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateContent uploads a new post as multipart form data.
func (c *Client) CreateContent(ctx context.Context, token string, fields ContentFields) (*Content, error) {
	if fields.Title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Title is required")
	}
	return c.sendContent(ctx, "content.create", http.MethodPost, "/api/content/addcontent", token, fields)
}

// UpdateContent replaces the given fields of post id. The backend may answer
// with a plain "no changes" message, in which case the result is nil.
func (c *Client) UpdateContent(ctx context.Context, token string, id int, fields ContentFields) (*Content, error) {
	if id <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "content id is required")
	}
	return c.sendContent(ctx, "content.update", http.MethodPut, "/api/content/update/"+strconv.Itoa(id), token, fields)
}

func (c *Client) sendContent(ctx context.Context, endpoint, method, path, token string, fields ContentFields) (*Content, error) {
	form := newForm()
	form.field("title", fields.Title)
	form.field("excerpt", fields.Excerpt)
	form.field("data", fields.Data)
	form.file("image", fields.Image)
	body, contentType, err := form.finish()
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, call{
		endpoint:    endpoint,
		method:      method,
		path:        path,
		token:       token,
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(resp); len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, nil
	}
	var out Content
	if err := decodeObject(endpoint, resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteContent(ctx context.Context, token string, id int) error {
	_, err := c.do(ctx, call{
		endpoint: "content.delete",
		method:   http.MethodDelete,
		path:     "/api/content/delete/" + strconv.Itoa(id),
		token:    token,
	})
	return err
}

// UploadImage stores an image and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, token string, image Upload) (string, error) {
	if image.Data == nil {
		return "", dErrors.New(dErrors.CodeValidation, "No image provided")
	}
	form := newForm()
	form.file("image", &image)
	body, contentType, err := form.finish()
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, call{
		endpoint:    "image.upload",
		method:      http.MethodPost,
		path:        "/api/image/addimage",
		token:       token,
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return "", err
	}
	u := decodeText(resp)
	if u == "" {
		return "", dErrors.New(dErrors.CodeMalformedResponse, "image upload returned no URL")
	}
	return u, nil
}
