package account

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"inkwell/internal/backend"
	"inkwell/internal/content"
	"inkwell/internal/guard"
	"inkwell/internal/session"
	"inkwell/internal/web"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/platform/httputil"
	"inkwell/pkg/requestcontext"
)

const settingsPath = "/account"

type Handler struct {
	backend        Backend
	renderer       *web.Renderer
	logger         *slog.Logger
	maxUploadBytes int64
}

func NewHandler(b Backend, renderer *web.Renderer, logger *slog.Logger, maxUploadBytes int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{backend: b, renderer: renderer, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register mounts the account pages. They belong behind an Authenticated
// guard.
func (h *Handler) Register(r chi.Router) {
	r.Get(guard.DashboardPath, h.HandleDashboard)
	r.Get(settingsPath, h.HandleSettings)
	r.Post(settingsPath+"/profile", h.HandleUpdateProfile)
	r.Post(settingsPath+"/password", h.HandleUpdatePassword)
	r.Post(settingsPath+"/email", h.HandleInitiateEmail)
	r.Post(settingsPath+"/email/verify", h.HandleVerifyEmail)
	r.Get(settingsPath+"/delete", h.HandleConfirmDelete)
	r.Post(settingsPath+"/delete", h.HandleDelete)
}

func statusFor(err error) int {
	return httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err))
}

type dashboardPage struct {
	Profile    *session.User
	Posts      []content.Item
	PostCount  int
	PostsError string
}

// HandleDashboard shows the profile and the user's latest posts. A failed
// profile fetch falls back to the identity in the session.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	store := session.FromContext(ctx)
	page := dashboardPage{Profile: store.User(), Posts: []content.Item{}}

	fetched, err := h.backend.GetUserDetails(ctx, store.Token())
	switch {
	case err == nil:
		page.Profile = mergeUser(page.Profile, fetched)
	case web.RedirectIfUnauthorized(w, r, err, h.logger):
		return
	default:
		h.logger.WarnContext(ctx, "profile fetch failed", "error", err, "request_id", requestID)
	}

	posts, err := h.backend.ListMyContent(ctx, store.Token())
	switch {
	case err == nil:
		page.PostCount = len(posts)
		page.Posts = recentPosts(posts)
	case web.RedirectIfUnauthorized(w, r, err, h.logger):
		return
	default:
		h.logger.WarnContext(ctx, "dashboard posts failed", "error", err, "request_id", requestID)
		page.PostsError = "Failed to load your content. Please try again."
	}

	h.renderer.Render(w, r, http.StatusOK, "dashboard", "Dashboard", page)
}

// settingsPage carries one form state per settings section so a failure is
// shown next to the form that caused it.
type settingsPage struct {
	Profile      *session.User
	ProfileForm  *web.FormState
	PasswordForm *web.FormState
	EmailForm    *web.FormState
	// PendingEmail is set once a code has been sent and the verify form shows.
	PendingEmail string
}

func (h *Handler) newSettingsPage(r *http.Request) settingsPage {
	u := session.FromContext(r.Context()).User()
	page := settingsPage{
		Profile:      u,
		ProfileForm:  web.NewFormState(),
		PasswordForm: web.NewFormState(),
		EmailForm:    web.NewFormState(),
	}
	if u != nil {
		page.ProfileForm.Values["username"] = u.Username
	}
	return page
}

func (h *Handler) renderSettings(w http.ResponseWriter, r *http.Request, status int, page settingsPage) {
	h.renderer.Render(w, r, status, "account", "Account settings", page)
}

// fail renders the settings page with err shown on form, unless the backend
// rejected the session.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, page settingsPage, form *web.FormState, err error) {
	if web.RedirectIfUnauthorized(w, r, err, h.logger) {
		return
	}
	ctx := r.Context()
	h.logger.InfoContext(ctx, "account update rejected", "error", err, "request_id", requestcontext.RequestID(ctx))
	form.Fail(err)
	h.renderSettings(w, r, statusFor(err), page)
}

func (h *Handler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	h.renderSettings(w, r, http.StatusOK, h.newSettingsPage(r))
}

func (h *Handler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := session.FromContext(ctx)
	page := h.newSettingsPage(r)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.fail(w, r, page, page.ProfileForm, dErrors.New(dErrors.CodeValidation, "The upload is too large or unreadable"))
		return
	}
	page.ProfileForm.Keep(r, "username")

	form := profileForm{Username: r.PostFormValue("username")}
	if err := form.Validate(); err != nil {
		h.fail(w, r, page, page.ProfileForm, err)
		return
	}
	image, closeImage, err := web.FormUpload(r, "image")
	if err != nil {
		h.fail(w, r, page, page.ProfileForm, err)
		return
	}
	defer closeImage()

	update := backend.ProfileUpdate{Username: form.Username, Image: image}
	if page.Profile != nil {
		update.Email = page.Profile.Email
	}
	if _, err := h.backend.UpdateProfile(ctx, store.Token(), update); err != nil {
		h.fail(w, r, page, page.ProfileForm, err)
		return
	}

	h.refreshUser(r, "", func(u *session.User) { u.Username = form.Username })
	web.SetFlash(w, r, web.FlashSuccess, msgProfileUpdated)
	web.SeeOther(w, r, settingsPath)
}

// refreshUser reloads the profile with token (the session's when empty) and
// stores it. When the fetch fails, patch is applied to the session's copy
// instead so the page still reflects the change just made.
func (h *Handler) refreshUser(r *http.Request, token string, patch func(*session.User)) {
	ctx := r.Context()
	store := session.FromContext(ctx)
	lookup := token
	if lookup == "" {
		lookup = store.Token()
	}

	current := store.User()
	next := current
	fetched, err := h.backend.GetUserDetails(ctx, lookup)
	if err == nil {
		next = mergeUser(current, fetched)
	} else {
		h.logger.WarnContext(ctx, "profile refresh failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		if next != nil {
			patch(next)
		}
	}
	if err := store.Update(ctx, token, next); err != nil {
		h.logger.WarnContext(ctx, "session update failed", "error", err, "request_id", requestcontext.RequestID(ctx))
	}
}

func (h *Handler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := h.newSettingsPage(r)

	form := passwordForm{Password: r.PostFormValue("new_password"), ConfirmPassword: r.PostFormValue("confirm_password")}
	if err := form.Validate(); err != nil {
		h.fail(w, r, page, page.PasswordForm, err)
		return
	}
	if _, err := h.backend.UpdatePassword(ctx, session.FromContext(ctx).Token(), form.Password); err != nil {
		h.fail(w, r, page, page.PasswordForm, err)
		return
	}

	h.logger.InfoContext(ctx, "password changed", "request_id", requestcontext.RequestID(ctx))
	web.SetFlash(w, r, web.FlashSuccess, msgPasswordUpdated)
	web.SeeOther(w, r, settingsPath)
}

// HandleInitiateEmail sends a code to the new address and shows the verify
// form in place of the address form.
func (h *Handler) HandleInitiateEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := h.newSettingsPage(r)
	page.EmailForm.Keep(r, "new_email")

	current := ""
	if page.Profile != nil {
		current = page.Profile.Email
	}
	form := emailForm{Email: r.PostFormValue("new_email")}
	if err := form.Validate(current); err != nil {
		h.fail(w, r, page, page.EmailForm, err)
		return
	}

	msg, err := h.backend.InitiateEmailUpdate(ctx, session.FromContext(ctx).Token(), form.Email)
	if err != nil {
		h.fail(w, r, page, page.EmailForm, err)
		return
	}
	if msg == "" {
		msg = msgOTPSent
	}
	page.PendingEmail = form.Email
	page.EmailForm.Success = msg
	h.renderSettings(w, r, http.StatusOK, page)
}

// HandleVerifyEmail confirms the code. The backend re-issues the token for
// the new address and the old one no longer identifies the user, so the
// session switches to the new token before anything else is fetched.
func (h *Handler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := h.newSettingsPage(r)
	page.PendingEmail = strings.TrimSpace(r.PostFormValue("new_email"))

	otp := strings.TrimSpace(r.PostFormValue("otp"))
	if otp == "" {
		h.fail(w, r, page, page.EmailForm, dErrors.New(dErrors.CodeValidation, msgOTPRequired))
		return
	}

	token, err := h.backend.VerifyEmailUpdate(ctx, session.FromContext(ctx).Token(), otp)
	if err != nil {
		h.fail(w, r, page, page.EmailForm, err)
		return
	}

	h.refreshUser(r, token, func(u *session.User) {
		if page.PendingEmail != "" {
			u.Email = page.PendingEmail
		}
	})
	h.logger.InfoContext(ctx, "email changed", "request_id", requestcontext.RequestID(ctx))
	web.SetFlash(w, r, web.FlashSuccess, msgEmailUpdated)
	web.SeeOther(w, r, settingsPath)
}

type deletePage struct {
	Error string
}

func (h *Handler) HandleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, "account_delete", "Delete account", deletePage{})
}

// HandleDelete removes the account after an explicit confirmation and ends
// the session.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := session.FromContext(ctx)
	if r.PostFormValue("confirm") != "yes" {
		h.renderer.Render(w, r, http.StatusBadRequest, "account_delete", "Delete account", deletePage{Error: msgConfirmDelete})
		return
	}

	if err := h.backend.DeleteAccount(ctx, store.Token()); err != nil {
		if web.RedirectIfUnauthorized(w, r, err, h.logger) {
			return
		}
		h.logger.WarnContext(ctx, "account deletion failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		h.renderer.Render(w, r, statusFor(err), "account_delete", "Delete account", deletePage{Error: dErrors.UserMessage(err)})
		return
	}

	if err := store.Logout(ctx); err != nil {
		h.logger.WarnContext(ctx, "logout after account deletion failed", "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	h.logger.InfoContext(ctx, "account deleted", "request_id", requestcontext.RequestID(ctx))
	web.SetFlash(w, r, web.FlashInfo, msgAccountDeleted)
	web.SeeOther(w, r, "/")
}
