package web

import (
	"log/slog"
	"net/http"

	"inkwell/internal/session"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/requestcontext"
)

// ExpiredLoginURL is where a rejected bearer token sends the browser.
const ExpiredLoginURL = "/login?expired=1"

// RedirectIfUnauthorized applies the session-expiry policy: when the backend
// rejected the bearer token, the session is cleared and the browser is sent
// to the login page. It reports whether it wrote the response.
func RedirectIfUnauthorized(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) bool {
	if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		return false
	}
	ctx := r.Context()
	if logoutErr := session.FromContext(ctx).Logout(ctx); logoutErr != nil && logger != nil {
		logger.WarnContext(ctx, "failed to clear rejected session", "error", logoutErr, "request_id", requestcontext.RequestID(ctx))
	}
	SeeOther(w, r, ExpiredLoginURL)
	return true
}

// FormState carries a form's submitted values back into the page along
// with the message for the failure, if any.
type FormState struct {
	Values  map[string]string
	Error   string
	Success string
}

// NewFormState starts an empty form.
func NewFormState() *FormState {
	return &FormState{Values: map[string]string{}}
}

// Fail records err as the form's message.
func (f *FormState) Fail(err error) *FormState {
	f.Error = dErrors.UserMessage(err)
	return f
}

func (f *FormState) Get(name string) string {
	if f == nil {
		return ""
	}
	return f.Values[name]
}

// Keep copies the named fields from the request's form. Passwords are never
// passed here.
func (f *FormState) Keep(r *http.Request, names ...string) *FormState {
	for _, n := range names {
		f.Values[n] = r.PostFormValue(n)
	}
	return f
}
