package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"inkwell/internal/guard"
	"inkwell/internal/session"
	"inkwell/internal/web"
	dErrors "inkwell/pkg/domain-errors"
	"inkwell/pkg/platform/httputil"
	"inkwell/pkg/requestcontext"
	"inkwell/pkg/validation"
)

// Handler serves the sign-in and account recovery pages.
type Handler struct {
	backend  Backend
	renderer *web.Renderer
	logger   *slog.Logger
}

func NewHandler(b Backend, renderer *web.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{backend: b, renderer: renderer, logger: logger}
}

// Register mounts the public auth pages. Logout is included: it needs no
// guard since clearing an empty session does nothing.
func (h *Handler) Register(r chi.Router) {
	r.Get(guard.LoginPath, h.HandleLoginPage)
	r.Post(guard.LoginPath, h.HandleLogin)
	r.Get("/signup", h.HandleSignupPage)
	r.Post("/signup", h.HandleSignup)
	r.Post("/signup/verify", h.HandleVerifySignup)
	r.Post("/signup/resend", h.HandleResendOTP)
	r.Get("/forgot-password", h.HandleForgotPasswordPage)
	r.Post("/forgot-password", h.HandleForgotPassword)
	r.Get("/reset-password/{token}", h.HandleResetPasswordPage)
	r.Post("/reset-password/{token}", h.HandleResetPassword)
	r.Post("/logout", h.HandleLogout)
}

func statusFor(err error) int {
	return httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err))
}

type loginPage struct {
	Form    *web.FormState
	Next    string
	Expired bool
}

func (h *Handler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if session.FromContext(r.Context()).IsAuthenticated() {
		web.SeeOther(w, r, guard.SafeNext(next, guard.DashboardPath))
		return
	}
	page := loginPage{Form: web.NewFormState(), Next: next, Expired: r.URL.Query().Get("expired") == "1"}
	if page.Expired {
		page.Form.Error = msgSessionExpired
	}
	h.renderer.Render(w, r, http.StatusOK, "login", "Log in", page)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	page := loginPage{Form: web.NewFormState().Keep(r, "email"), Next: r.PostFormValue("next")}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	if err := validation.Validate(form); err != nil {
		page.Form.Fail(err)
		h.renderer.Render(w, r, http.StatusBadRequest, "login", "Log in", page)
		return
	}

	res, err := h.backend.SignIn(ctx, form.Email, form.Password)
	if err == nil {
		err = session.FromContext(ctx).Login(ctx, res.Token, signedInUser(res))
	}
	if err != nil {
		h.logger.InfoContext(ctx, "sign-in failed",
			"error", err,
			"request_id", requestID,
		)
		page.Form.Fail(err)
		h.renderer.Render(w, r, statusFor(err), "login", "Log in", page)
		return
	}

	h.logger.InfoContext(ctx, "user signed in",
		"user_id", res.User.ID,
		"request_id", requestID,
	)
	web.SeeOther(w, r, guard.SafeNext(page.Next, guard.DashboardPath))
}

type signupPage struct {
	Form *web.FormState
}

type verifyPage struct {
	Email string
	Form  *web.FormState
}

func (h *Handler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()).IsAuthenticated() {
		web.SeeOther(w, r, guard.DashboardPath)
		return
	}
	h.renderer.Render(w, r, http.StatusOK, "signup", "Sign up", signupPage{Form: web.NewFormState()})
}

// HandleSignup starts registration. The backend emails a code and the
// browser moves on to the verification form.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := signupPage{Form: web.NewFormState().Keep(r, "name", "email")}
	page.Form.Values["terms"] = r.PostFormValue("terms")

	form := signupForm{
		Name:            r.PostFormValue("name"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
		Terms:           r.PostFormValue("terms") != "",
	}
	if err := form.Validate(); err != nil {
		page.Form.Fail(err)
		h.renderer.Render(w, r, http.StatusBadRequest, "signup", "Sign up", page)
		return
	}

	msg, err := h.backend.InitiateSignup(ctx, form.Email, form.Name, form.Password)
	if err != nil {
		err = signupError(err, false)
		h.logger.InfoContext(ctx, "signup rejected", "error", err, "request_id", requestcontext.RequestID(ctx))
		page.Form.Fail(err)
		h.renderer.Render(w, r, statusFor(err), "signup", "Sign up", page)
		return
	}

	verify := verifyPage{Email: form.Email, Form: web.NewFormState()}
	verify.Form.Success = msg
	if verify.Form.Success == "" {
		verify.Form.Success = "We sent a verification code to " + form.Email + "."
	}
	h.renderer.Render(w, r, http.StatusOK, "signup_verify", "Verify your email", verify)
}

// HandleVerifySignup completes registration and signs the new user in with
// the token the backend issued.
func (h *Handler) HandleVerifySignup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	page := verifyPage{Email: strings.TrimSpace(r.PostFormValue("email")), Form: web.NewFormState()}
	fail := func(err error) {
		page.Form.Fail(err)
		h.renderer.Render(w, r, statusFor(err), "signup_verify", "Verify your email", page)
	}

	otp := strings.TrimSpace(r.PostFormValue("otp"))
	if page.Email == "" {
		fail(dErrors.New(dErrors.CodeValidation, msgUnknownSignup))
		return
	}
	if otp == "" {
		fail(dErrors.New(dErrors.CodeValidation, msgOTPRequired))
		return
	}

	res, err := h.backend.VerifySignup(ctx, page.Email, otp)
	if err != nil {
		h.logger.InfoContext(ctx, "signup verification failed", "error", err, "request_id", requestID)
		fail(signupError(err, true))
		return
	}
	if res.Token == "" {
		msg := res.Message
		if msg == "" {
			msg = "Verification failed. Please try again."
		}
		fail(dErrors.New(dErrors.CodeValidation, msg))
		return
	}

	user := res.User
	if user == nil {
		if user, err = h.backend.GetUserDetails(ctx, res.Token); err != nil {
			h.logger.WarnContext(ctx, "profile fetch after signup failed", "error", err, "request_id", requestID)
			fail(err)
			return
		}
	}
	if err := session.FromContext(ctx).Login(ctx, res.Token, SessionUser(user)); err != nil {
		fail(err)
		return
	}

	h.logger.InfoContext(ctx, "signup completed", "user_id", user.ID, "request_id", requestID)
	msg := res.Message
	if msg == "" {
		msg = msgWelcome
	}
	web.SetFlash(w, r, web.FlashSuccess, msg)
	web.SeeOther(w, r, guard.DashboardPath)
}

func (h *Handler) HandleResendOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := verifyPage{Email: strings.TrimSpace(r.PostFormValue("email")), Form: web.NewFormState()}
	if page.Email == "" {
		page.Form.Error = msgUnknownSignup
		h.renderer.Render(w, r, http.StatusBadRequest, "signup_verify", "Verify your email", page)
		return
	}

	if _, err := h.backend.ResendOTP(ctx, page.Email); err != nil {
		h.logger.InfoContext(ctx, "otp resend failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		page.Form.Fail(signupError(err, true))
		h.renderer.Render(w, r, statusFor(err), "signup_verify", "Verify your email", page)
		return
	}
	page.Form.Success = msgOTPResent
	h.renderer.Render(w, r, http.StatusOK, "signup_verify", "Verify your email", page)
}

type emailPage struct {
	Form *web.FormState
}

func (h *Handler) HandleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	form := web.NewFormState()
	form.Values["email"] = r.URL.Query().Get("email")
	h.renderer.Render(w, r, http.StatusOK, "forgot_password", "Forgot password", emailPage{Form: form})
}

// HandleForgotPassword asks the backend to email a reset link. The reply is
// the same whether or not the address is known.
func (h *Handler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := emailPage{Form: web.NewFormState().Keep(r, "email")}
	email := strings.TrimSpace(r.PostFormValue("email"))
	if email == "" {
		page.Form.Error = msgEmailRequired
		h.renderer.Render(w, r, http.StatusBadRequest, "forgot_password", "Forgot password", page)
		return
	}

	msg, err := h.backend.ForgotPassword(ctx, email)
	if err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		h.logger.WarnContext(ctx, "password reset request failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		page.Form.Fail(err)
		h.renderer.Render(w, r, statusFor(err), "forgot_password", "Forgot password", page)
		return
	}
	if msg == "" {
		msg = msgResetEmailSent
	}
	page.Form.Success = msg
	h.renderer.Render(w, r, http.StatusOK, "forgot_password", "Forgot password", page)
}

type resetPage struct {
	Token string
	Valid bool
	Form  *web.FormState
}

// HandleResetPasswordPage checks the link before showing the form so an
// expired link is reported up front.
func (h *Handler) HandleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := resetPage{Token: chi.URLParam(r, "token"), Form: web.NewFormState()}
	if err := h.backend.VerifyResetToken(ctx, page.Token); err != nil {
		h.logger.InfoContext(ctx, "reset token rejected", "error", err, "request_id", requestcontext.RequestID(ctx))
		page.Form.Error = msgResetLinkDead
		if dErrors.IsTransport(err) {
			page.Form.Fail(err)
		}
		h.renderer.Render(w, r, http.StatusOK, "reset_password", "Reset password", page)
		return
	}
	page.Valid = true
	h.renderer.Render(w, r, http.StatusOK, "reset_password", "Reset password", page)
}

func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := resetPage{Token: chi.URLParam(r, "token"), Valid: true, Form: web.NewFormState()}

	form := resetForm{Password: r.PostFormValue("password"), ConfirmPassword: r.PostFormValue("confirm_password")}
	if err := form.Validate(); err != nil {
		page.Form.Fail(err)
		h.renderer.Render(w, r, http.StatusBadRequest, "reset_password", "Reset password", page)
		return
	}

	if _, err := h.backend.ResetPassword(ctx, page.Token, form.Password); err != nil {
		h.logger.InfoContext(ctx, "password reset failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		if dErrors.HasCode(err, dErrors.CodeNotFound) || dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			page.Valid = false
			err = &dErrors.Error{Code: dErrors.CodeValidation, Message: msgResetLinkDead, Err: err}
		}
		page.Form.Fail(err)
		h.renderer.Render(w, r, statusFor(err), "reset_password", "Reset password", page)
		return
	}

	web.SetFlash(w, r, web.FlashSuccess, msgPasswordReset)
	web.SeeOther(w, r, guard.LoginPath)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := session.FromContext(ctx)
	signedIn := store.IsAuthenticated()
	if err := store.Logout(ctx); err != nil {
		h.logger.WarnContext(ctx, "logout could not clear storage", "error", err, "request_id", requestcontext.RequestID(ctx))
	}
	if signedIn {
		web.SetFlash(w, r, web.FlashInfo, msgLoggedOut)
	}
	web.SeeOther(w, r, "/")
}
