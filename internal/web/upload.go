package web

import (
	"errors"
	"mime/multipart"
	"net/http"

	"inkwell/internal/backend"
	dErrors "inkwell/pkg/domain-errors"
)

// FormUpload returns the named file of a multipart form, or nil when none
// was sent. The returned func closes the file and is never nil.
func FormUpload(r *http.Request, name string) (*backend.Upload, func(), error) {
	file, header, err := r.FormFile(name)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, func() {}, dErrors.Wrap(err, dErrors.CodeValidation, "The image could not be read")
	}
	if header.Size == 0 {
		_ = file.Close()
		return nil, func() {}, nil
	}
	return &backend.Upload{
		Filename:    header.Filename,
		ContentType: UploadContentType(header),
		Data:        file,
	}, func() { _ = file.Close() }, nil
}

// UploadContentType falls back to a generic type when the browser sent none.
func UploadContentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
