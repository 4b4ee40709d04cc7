// auth.go implements the credential screens (login, registration, password
// recovery, logout) and the JSON session endpoints.
package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/credentials"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/guard"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/middleware"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
)

// Query markers left by completed account flows on the login page.
const (
	registeredParam = "registrado"
	resetDoneParam  = "restablecida"
)

// AuthHandlers serves the credential screens.
type AuthHandlers struct {
	base
	exchanger *credentials.Exchanger
	sessions  *session.Manager
	refresher session.Refresher
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(d Deps) *AuthHandlers {
	return &AuthHandlers{
		base:      newBase(d),
		exchanger: d.Exchanger,
		sessions:  d.Sessions,
		refresher: d.Refresher,
	}
}

type loginForm struct {
	Email       string `form:"email"`
	Password    string `form:"password"`
	CallbackURL string `form:"callbackUrl"`
}

// authView is the page data of every credential screen.
type authView struct {
	Expired bool
	Notice  *Notice
	Done    bool
	Message string
	Token   string
}

func meta(c *gin.Context) credentials.Meta {
	return credentials.Meta{IP: c.ClientIP(), RequestID: middleware.GetRequestID(c)}
}

// failureStatus is the status a credential screen answers with for kind.
func failureStatus(kind auth.ErrorKind) int {
	switch kind {
	case auth.KindValidation, auth.KindPasswordTooWeak, auth.KindPasswordsDontMatch:
		return http.StatusUnprocessableEntity
	case auth.KindInvalidCredentials, auth.KindAccountLocked:
		return http.StatusUnauthorized
	case auth.KindAccountDisabled:
		return http.StatusForbidden
	case auth.KindEmailExists, auth.KindUsernameExists:
		return http.StatusConflict
	case auth.KindRateLimited:
		return http.StatusTooManyRequests
	case auth.KindNetworkError, auth.KindServerError:
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}

// failed fills p for a rejected credential flow: inline field errors for
// malformed input, a titled alert plus a toast for everything else.
func failed(p *authView, toasts *[]notify.Toast, res credentials.Result) {
	if res.Kind == auth.KindValidation {
		return
	}
	p.Notice = &Notice{Title: res.Title, Message: res.Message}
	*toasts = append(*toasts, res.Toast())
}

// LoginPageHandler renders the login form.
// GET /login?callbackUrl=/administracion/usuarios&expired=1
func (h *AuthHandlers) LoginPageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.view(c, "Iniciar sesión", "")
		p.Form = loginForm{CallbackURL: guard.SafeCallback(c.Query(guard.CallbackParam))}
		p.Data = authView{Expired: c.Query(guard.ExpiredParam) != "" || session.WasExpired(c)}
		switch {
		case c.Query(registeredParam) != "":
			p.Toasts = append(p.Toasts, notify.Success("Cuenta creada. Inicie sesión para continuar."))
		case c.Query(resetDoneParam) != "":
			p.Toasts = append(p.Toasts, notify.Success("Contraseña actualizada. Inicie sesión con su nueva contraseña."))
		}
		c.HTML(http.StatusOK, "login", p)
	}
}

// LoginHandler exchanges the submitted credentials for a session and
// redirects to the callback URL.
// POST /login
func (h *AuthHandlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var form loginForm
		_ = c.ShouldBind(&form)
		form.CallbackURL = guard.SafeCallback(form.CallbackURL)

		res := h.exchanger.Login(c.Request.Context(), form.Email, form.Password, meta(c))
		if !res.Success {
			form.Password = ""
			p := h.view(c, "Iniciar sesión", "")
			p.Form = form
			p.Errors = res.Fields
			data := authView{}
			failed(&data, &p.Toasts, res)
			p.Data = data
			c.HTML(failureStatus(res.Kind), "login", p)
			return
		}

		if err := h.cookie.Write(c, res.Session, h.sessions.TTL()); err != nil {
			slog.Error("failed to issue session cookie", "error", err)
			_ = h.sessions.Destroy(c.Request.Context(), res.Session.ID, session.ReasonLogout)
			c.Redirect(http.StatusSeeOther, guard.LoginPath)
			return
		}
		holder := session.NewHolder(h.sessions, h.refresher, res.Session)
		holder.Notify(res.Toast())
		if err := holder.Flush(c.Request.Context()); err != nil {
			slog.Warn("failed to queue welcome toast", "session_id", res.Session.ID, "error", err)
		}
		c.Redirect(http.StatusSeeOther, form.CallbackURL)
	}
}

// RegisterPageHandler renders the registration form.
// GET /register
func (h *AuthHandlers) RegisterPageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.view(c, "Crear cuenta", "")
		p.Form = credentials.RegisterInput{}
		p.Data = authView{}
		c.HTML(http.StatusOK, "register", p)
	}
}

// RegisterHandler creates an account and sends the user to the login form.
// POST /register
func (h *AuthHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in credentials.RegisterInput
		_ = c.ShouldBind(&in)

		res := h.exchanger.Register(c.Request.Context(), in)
		if res.Success {
			c.Redirect(http.StatusSeeOther, guard.LoginPath+"?"+registeredParam+"=1")
			return
		}
		in.Password, in.ConfirmPassword = "", ""
		p := h.view(c, "Crear cuenta", "")
		p.Form = in
		p.Errors = res.Fields
		data := authView{}
		failed(&data, &p.Toasts, res)
		p.Data = data
		c.HTML(failureStatus(res.Kind), "register", p)
	}
}

// ForgotPasswordPageHandler renders the password recovery form.
// GET /forgot-password
func (h *AuthHandlers) ForgotPasswordPageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.view(c, "Recuperar contraseña", "")
		p.Form = loginForm{}
		p.Data = authView{}
		c.HTML(http.StatusOK, "forgot_password", p)
	}
}

// ForgotPasswordHandler requests a reset link. The answer is the same whether
// or not the email is registered.
// POST /forgot-password
func (h *AuthHandlers) ForgotPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		form := loginForm{Email: c.PostForm("email")}
		res := h.exchanger.ForgotPassword(c.Request.Context(), form.Email)

		p := h.view(c, "Recuperar contraseña", "")
		p.Form = form
		p.Errors = res.Fields
		data := authView{Done: res.Success, Message: res.Message}
		status := http.StatusOK
		if !res.Success {
			failed(&data, &p.Toasts, res)
			status = failureStatus(res.Kind)
		}
		p.Data = data
		c.HTML(status, "forgot_password", p)
	}
}

// ResetPasswordPageHandler renders the new-password form for a reset link.
// GET /reset-password/:token
func (h *AuthHandlers) ResetPasswordPageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := h.view(c, "Restablecer contraseña", "")
		p.Data = authView{Token: c.Param("token")}
		c.HTML(http.StatusOK, "reset_password", p)
	}
}

// ResetPasswordHandler sets the new password.
// POST /reset-password/:token
func (h *AuthHandlers) ResetPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in credentials.ResetInput
		_ = c.ShouldBind(&in)
		in.Token = c.Param("token")

		res := h.exchanger.ResetPassword(c.Request.Context(), in)
		if res.Success {
			c.Redirect(http.StatusSeeOther, guard.LoginPath+"?"+resetDoneParam+"=1")
			return
		}
		p := h.view(c, "Restablecer contraseña", "")
		p.Errors = res.Fields
		data := authView{Token: in.Token}
		failed(&data, &p.Toasts, res)
		p.Data = data
		c.HTML(failureStatus(res.Kind), "reset_password", p)
	}
}

// RateLimitedHandler answers a throttled credential submission with the form
// it came from and a rate-limit alert.
func (h *AuthHandlers) RateLimitedHandler() gin.HandlerFunc {
	pages := map[string]string{
		guard.LoginPath:          "login",
		"/register":              "register",
		"/forgot-password":       "forgot_password",
		"/reset-password/:token": "reset_password",
	}
	return func(c *gin.Context) {
		kind := auth.KindRateLimited
		name, ok := pages[c.FullPath()]
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": kind.Code()})
			return
		}
		p := h.view(c, kind.Title(), "")
		switch name {
		case "login":
			p.Form = loginForm{CallbackURL: guard.SafeCallback(c.PostForm("callbackUrl")), Email: c.PostForm("email")}
		case "register":
			p.Form = credentials.RegisterInput{Nombre: c.PostForm("nombre"), Email: c.PostForm("email")}
		case "forgot_password":
			p.Form = loginForm{Email: c.PostForm("email")}
		}
		p.Data = authView{Notice: &Notice{Title: kind.Title(), Message: kind.Message()}, Token: c.Param("token")}
		p.Toasts = append(p.Toasts, notify.Error(kind.Title(), kind.Message()))
		c.HTML(http.StatusTooManyRequests, name, p)
		c.Abort()
	}
}

// LogoutHandler ends the session.
// POST /logout
func (h *AuthHandlers) LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.exchanger.Logout(c.Request.Context(), session.Current(c), meta(c)); err != nil {
			slog.Warn("logout failed", "error", err)
		}
		h.cookie.Clear(c)
		c.Redirect(http.StatusSeeOther, guard.LoginPath)
	}
}

// SessionHandler returns the current session snapshot. The upstream token is
// never serialized.
// GET /api/session
func (h *AuthHandlers) SessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session.Current(c)
		if s == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"authenticated": false,
				"expired":       session.WasExpired(c),
			})
			return
		}
		s.Toasts = nil
		c.JSON(http.StatusOK, gin.H{
			"authenticated": true,
			"session":       s,
		})
	}
}

// refresh re-reads the session claims from the backend. Role and permission
// changes made on the server become visible only through here or a new login.
func (h *AuthHandlers) refresh(c *gin.Context) (int, error) {
	holder, ok := session.HolderFrom(c)
	if !ok || session.Current(c) == nil {
		return http.StatusUnauthorized, backend.ErrSessionExpired
	}
	err := holder.Refresh(c.Request.Context(), "")
	if err == nil {
		return http.StatusOK, nil
	}
	if backend.KindOf(err) == auth.KindSessionExpired || errors.Is(err, session.ErrLoggedOut) {
		holder.ForceLogout(c.Request.Context())
		h.cookie.Clear(c)
		return http.StatusUnauthorized, err
	}
	slog.Warn("session refresh failed", "session_id", holder.ID(), "error", err)
	return upstreamStatus(err), err
}

// RefreshSessionHandler forces a refresh and returns the new snapshot.
// POST /api/session/refresh
func (h *AuthHandlers) RefreshSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := h.refresh(c)
		if err != nil {
			c.JSON(status, gin.H{"error": backend.KindOf(err).Code()})
			return
		}
		s := session.Current(c)
		s.Toasts = nil
		c.JSON(http.StatusOK, gin.H{"authenticated": true, "session": s})
	}
}

// RefreshSessionPageHandler is the form variant of RefreshSessionHandler.
// POST /sesion/actualizar
func (h *AuthHandlers) RefreshSessionPageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := h.refresh(c)
		switch {
		case status == http.StatusUnauthorized:
			c.Redirect(http.StatusSeeOther, guard.LoginURL("", true))
		case err != nil:
			kind := backend.KindOf(err)
			flash(c, notify.Error(kind.Title(), kind.Message()))
			c.Redirect(http.StatusSeeOther, guard.HomePath)
		default:
			flash(c, notify.Success("Sesión actualizada."))
			c.Redirect(http.StatusSeeOther, guard.HomePath)
		}
	}
}
