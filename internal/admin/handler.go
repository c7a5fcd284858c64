package admin

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"inkwell/internal/backend"
	"inkwell/internal/guard"
	"inkwell/internal/session"
	"inkwell/internal/web"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/platform/httputil"
	"inkwell/pkg/requestcontext"
)

const (
	homePath  = "/admin"
	usersPath = "/admin/users"
)

// Handler handles the admin overview and user management pages
type Handler struct {
	service  *Service
	renderer *web.Renderer
	logger   *slog.Logger
}

func New(service *Service, renderer *web.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, renderer: renderer, logger: logger}
}

// Register registers admin routes with the router. They belong behind an
// Admin guard.
func (h *Handler) Register(r chi.Router) {
	r.Get(homePath, h.HandleHome)
	r.Get(usersPath, h.HandleUsers)
	r.Post(usersPath, h.HandleAddUser)
	r.Get(usersPath+"/edit", h.HandleEditUser)
	r.Post(usersPath+"/update", h.HandleUpdateUser)
	r.Get(usersPath+"/delete", h.HandleConfirmDelete)
	r.Post(usersPath+"/delete", h.HandleDeleteUser)
}

func statusFor(err error) int {
	return httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err))
}

type homePage struct {
	Stats *Stats
	Error string
}

// HandleHome shows the headline figures and links to the admin areas. The
// links stay usable when the figures cannot be loaded.
func (h *Handler) HandleHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.GetStats(ctx, session.FromContext(ctx).Token())
	if err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		h.logger.WarnContext(ctx, "failed to get stats",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		h.renderer.Render(w, r, http.StatusOK, "admin_home", "Admin", homePage{
			Error: "Failed to load statistics. " + dErrors.UserMessage(err),
		})
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "admin_home", "Admin", homePage{Stats: stats})
}

type usersPage struct {
	Users []backend.User
	// Form is the add-user form.
	Form  *web.FormState
	Error string
	Self  string
}

func (h *Handler) renderUsers(w http.ResponseWriter, r *http.Request, status int, form *web.FormState) {
	ctx := r.Context()
	store := session.FromContext(ctx)
	page := usersPage{Users: []backend.User{}, Form: form}
	if u := store.User(); u != nil {
		page.Self = u.Email
	}

	users, err := h.service.GetAllUsers(ctx, store.Token())
	if err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		h.logger.WarnContext(ctx, "failed to get users",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		page.Error = msgLoadUsers
		if status == http.StatusOK {
			status = statusFor(err)
		}
	} else {
		page.Users = users
	}

	h.logger.InfoContext(ctx, "admin users list retrieved",
		"count", len(page.Users),
		"request_id", requestcontext.RequestID(ctx),
	)
	h.renderer.Render(w, r, status, "admin_users", "User management", page)
}

// HandleUsers lists every account with the add-user form.
func (h *Handler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	h.renderUsers(w, r, http.StatusOK, web.NewFormState())
}

func (h *Handler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := web.NewFormState().Keep(r, "username", "email", "admin", "verified")

	form := readUserForm(r)
	if err := form.Validate(true); err != nil {
		h.renderUsers(w, r, statusFor(err), state.Fail(err))
		return
	}
	msg, err := h.service.AddUser(ctx, session.FromContext(ctx).Token(), form)
	if err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		h.renderUsers(w, r, statusFor(err), state.Fail(err))
		return
	}

	web.SetFlash(w, r, web.FlashSuccess, msg)
	web.SeeOther(w, r, usersPath)
}

type editPage struct {
	// Original is the address the account had when the form was opened; it
	// identifies the account even when the email field changes.
	Original string
	Form     *web.FormState
}

func (h *Handler) renderEdit(w http.ResponseWriter, r *http.Request, status int, page editPage) {
	h.renderer.Render(w, r, status, "admin_user_edit", "Edit user", page)
}

// backToUsers reports a lookup failure on the list page.
func (h *Handler) backToUsers(w http.ResponseWriter, r *http.Request, err error) {
	if web.RedirectIfUnauthorized(w, r, err, h.logger) {
		return
	}
	ctx := r.Context()
	h.logger.InfoContext(ctx, "admin user lookup failed", "error", err, "request_id", requestcontext.RequestID(ctx))
	web.SetFlash(w, r, web.FlashError, dErrors.UserMessage(err))
	web.SeeOther(w, r, usersPath)
}

func (h *Handler) HandleEditUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := h.service.FindUser(ctx, session.FromContext(ctx).Token(), r.URL.Query().Get("email"))
	if err != nil {
		h.backToUsers(w, r, err)
		return
	}

	form := web.NewFormState()
	form.Values["username"] = u.Username
	form.Values["email"] = u.Email
	if u.Admin {
		form.Values["admin"] = "yes"
	}
	if u.Verified {
		form.Values["verified"] = "yes"
	}
	h.renderEdit(w, r, http.StatusOK, editPage{Original: u.Email, Form: form})
}

// HandleUpdateUser saves the edit form. When administrators edit their own
// account the session identity follows the change.
func (h *Handler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := session.FromContext(ctx)
	page := editPage{
		Original: strings.TrimSpace(r.PostFormValue("original_email")),
		Form:     web.NewFormState().Keep(r, "username", "email", "admin", "verified"),
	}
	if page.Original == "" {
		h.backToUsers(w, r, dErrors.New(dErrors.CodeBadRequest, "No user selected"))
		return
	}

	form := readUserForm(r)
	if err := form.Validate(false); err != nil {
		page.Form.Fail(err)
		h.renderEdit(w, r, statusFor(err), page)
		return
	}
	msg, err := h.service.UpdateUser(ctx, store.Token(), page.Original, form)
	if err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		page.Form.Fail(err)
		h.renderEdit(w, r, statusFor(err), page)
		return
	}

	next := usersPath
	if self := store.User(); self != nil && strings.EqualFold(self.Email, page.Original) {
		updated := *self
		updated.Username = form.Username
		updated.Email = form.Email
		updated.Admin = form.Admin
		updated.Verified = form.Verified
		if err := store.Update(ctx, "", &updated); err != nil {
			h.logger.WarnContext(ctx, "session update failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		}
		if !updated.Admin {
			next = guard.DashboardPath
		}
	}

	web.SetFlash(w, r, web.FlashSuccess, msg)
	web.SeeOther(w, r, next)
}

type deletePage struct {
	User  *backend.User
	Error string
}

// HandleConfirmDelete asks before an account is removed.
func (h *Handler) HandleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := h.service.FindUser(ctx, session.FromContext(ctx).Token(), r.URL.Query().Get("email"))
	if err != nil {
		h.backToUsers(w, r, err)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "admin_user_delete", "Delete user", deletePage{User: u})
}

func (h *Handler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := session.FromContext(ctx)
	email := strings.TrimSpace(r.PostFormValue("email"))
	page := deletePage{User: &backend.User{Email: email}}

	if email == "" {
		h.backToUsers(w, r, dErrors.New(dErrors.CodeBadRequest, "No user selected"))
		return
	}
	if self := store.User(); self != nil && strings.EqualFold(self.Email, email) {
		page.Error = msgDeleteSelf
		h.renderer.Render(w, r, http.StatusBadRequest, "admin_user_delete", "Delete user", page)
		return
	}
	if r.PostFormValue("confirm") != "yes" {
		page.Error = msgConfirmDelete
		h.renderer.Render(w, r, http.StatusBadRequest, "admin_user_delete", "Delete user", page)
		return
	}

	msg, err := h.service.DeleteUser(ctx, store.Token(), email)
	if err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		h.logger.WarnContext(ctx, "admin user deletion failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		page.Error = dErrors.UserMessage(err)
		h.renderer.Render(w, r, statusFor(err), "admin_user_delete", "Delete user", page)
		return
	}

	web.SetFlash(w, r, web.FlashSuccess, msg)
	web.SeeOther(w, r, usersPath)
}
