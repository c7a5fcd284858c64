package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"

	dErrors "inkwell/pkg/domain-errors"
)

type formBuilder struct {
	buf bytes.Buffer
	w   *multipart.Writer
	err error
}

func newForm() *formBuilder {
	f := &formBuilder{}
	f.w = multipart.NewWriter(&f.buf)
	return f
}

func (f *formBuilder) field(name, value string) {
	if f.err != nil {
		return
	}
	f.err = f.w.WriteField(name, value)
}

// jsonPart writes a part with Content-Type application/json, which the
// backend needs to bind a typed part.
func (f *formBuilder) jsonPart(name string, v any) {
	if f.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		f.err = err
		return
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, name))
	h.Set("Content-Type", "application/json")
	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = part.Write(data)
}

func (f *formBuilder) file(name string, u *Upload) {
	if f.err != nil || u == nil || u.Data == nil {
		return
	}
	filename := u.Filename
	if filename == "" {
		filename = "upload"
	}
	contentType := u.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, name, sanitizeFilename(filename)))
	h.Set("Content-Type", contentType)
	part, err := f.w.CreatePart(h)
	if err != nil {
		f.err = err
		return
	}
	_, f.err = io.Copy(part, u.Data)
}

// finish closes the form and returns the body and its content type.
func (f *formBuilder) finish() (io.Reader, string, error) {
	if f.err == nil {
		f.err = f.w.Close()
	}
	if f.err != nil {
		return nil, "", dErrors.Wrap(f.err, dErrors.CodeInternal, "build multipart body")
	}
	return &f.buf, f.w.FormDataContentType(), nil
}

func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r == '\r' || r == '\n' {
			return '_'
		}
		return r
	}, name)
}
