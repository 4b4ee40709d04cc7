// Package credentials exchanges user credentials with the backend for a
// dashboard session and runs the account flows around it: registration,
// password recovery and logout.
package credentials

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/audit"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/safego"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/telemetry"
)

const (
	minPasswordLength = 8
	logoutTimeout     = 5 * time.Second
)

// Result is the outcome of a credential flow, ready to render.
type Result struct {
	Success bool
	Kind    auth.ErrorKind
	Title   string
	Message string
	// Fields holds inline validation messages keyed by form field.
	Fields map[string]string
	// Session is set by a successful Login.
	Session *auth.Session
}

// Toast returns the notification matching r.
func (r Result) Toast() notify.Toast {
	if r.Success {
		return notify.Success(r.Message)
	}
	return notify.Error(r.Title, r.Message)
}

func failure(kind auth.ErrorKind) Result {
	return Result{Kind: kind, Title: kind.Title(), Message: kind.Message()}
}

func invalid(fields map[string]string) Result {
	r := failure(auth.KindValidation)
	r.Fields = fields
	return r
}

// Upstream is the subset of backend.AuthAPI the exchanger uses.
type Upstream interface {
	Login(ctx context.Context, email, password string) (auth.Claims, error)
	Logout(ctx context.Context, accessToken string) error
	Register(ctx context.Context, r backend.RegisterRequest) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// Meta describes the caller of a flow for auditing.
type Meta struct {
	IP        string
	RequestID string
}

// Exchanger runs the credential flows.
type Exchanger struct {
	upstream Upstream
	sessions *session.Manager
	audit    *audit.Recorder
	validate *validator.Validate

	// waitBackground makes Logout wait for its background work. Tests only.
	waitBackground bool
}

// NewExchanger returns an exchanger. recorder may be nil.
func NewExchanger(upstream Upstream, sessions *session.Manager, recorder *audit.Recorder) *Exchanger {
	return &Exchanger{
		upstream: upstream,
		sessions: sessions,
		audit:    recorder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

var fieldNames = map[string]string{
	"Email":           "email",
	"Password":        "password",
	"Nombre":          "nombre",
	"ConfirmPassword": "confirm_password",
	"Token":           "token",
}

var tagMessages = map[string]string{
	"required": "Este campo es obligatorio.",
	"email":    "Ingrese un correo electrónico válido.",
	"min":      "El valor es demasiado corto.",
	"max":      "El valor es demasiado largo.",
}

// check validates v and returns its inline field messages, nil when valid.
func (e *Exchanger) check(v any) map[string]string {
	err := e.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"__all__": err.Error()}
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fieldNames[fe.Field()]
		if name == "" {
			name = strings.ToLower(fe.Field())
		}
		if _, seen := out[name]; seen {
			continue
		}
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "Valor inválido."
		}
		out[name] = msg
	}
	return out
}

// Login validates the credentials locally, exchanges them upstream and starts
// a session. The login audit is best-effort and never fails the login.
func (e *Exchanger) Login(ctx context.Context, email, password string, meta Meta) Result {
	email = strings.TrimSpace(email)
	if fields := e.check(loginForm{Email: email, Password: password}); fields != nil {
		telemetry.LoginAttemptsTotal.WithLabelValues("invalid_input").Inc()
		return invalid(fields)
	}

	claims, err := e.upstream.Login(ctx, email, password)
	if err != nil {
		kind := loginKind(err)
		telemetry.LoginAttemptsTotal.WithLabelValues(kind.Code()).Inc()
		slog.Info("login rejected", "email", email, "kind", kind.Code(), "error", err)
		e.audit.Record(&audit.LogEntry{
			Action:    "login_failed",
			Module:    "auth",
			Email:     email,
			IPAddress: meta.IP,
			RequestID: meta.RequestID,
			Result:    audit.ResultError,
			Details:   kind.Code(),
		})
		return failure(kind)
	}

	s, err := e.sessions.Create(ctx, claims)
	if err != nil {
		telemetry.LoginAttemptsTotal.WithLabelValues(auth.KindServerError.Code()).Inc()
		slog.Error("failed to create session", "email", email, "error", err)
		return failure(auth.KindServerError)
	}

	telemetry.LoginAttemptsTotal.WithLabelValues("success").Inc()
	e.audit.Record(&audit.LogEntry{
		Action:    "login",
		Module:    "auth",
		UserID:    s.SubjectID,
		Email:     s.Email,
		SessionID: s.ID,
		IPAddress: meta.IP,
		RequestID: meta.RequestID,
		Result:    audit.ResultSuccess,
		Token:     s.Token,
	})
	return Result{Success: true, Message: "Bienvenido, " + displayName(s), Session: s}
}

func displayName(s *auth.Session) string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Email
}

// loginKind classifies a failed login without revealing whether the account exists.
func loginKind(err error) auth.ErrorKind {
	apiErr, ok := backend.AsAPIError(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return auth.KindNetworkError
		}
		return auth.KindUnknown
	}
	return auth.ClassifyLogin(apiErr.Status, apiErr.Code, apiErr.Message)
}

// classify maps a failed account flow onto a kind. Unlike login, these flows
// may report that an email is already registered.
func classify(err error) auth.ErrorKind {
	apiErr, ok := backend.AsAPIError(err)
	if !ok {
		return auth.KindUnknown
	}
	if k, ok := auth.KindFromCode(apiErr.Code); ok {
		return k
	}
	if apiErr.Status == 0 || apiErr.Status >= 500 {
		return apiErr.Kind
	}
	if k := auth.Classify(apiErr.Status, apiErr.Code, apiErr.Message); k != auth.KindUnknown {
		return k
	}
	return apiErr.Kind
}

// fieldErrors flattens the server's field errors for inline display.
func fieldErrors(err error) map[string]string {
	apiErr, ok := backend.AsAPIError(err)
	if !ok || len(apiErr.Fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(apiErr.Fields))
	for name := range apiErr.Fields {
		out[name] = apiErr.FieldError(name)
	}
	return out
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Nombre          string `form:"nombre" validate:"required,max=120"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required"`
	ConfirmPassword string `form:"confirm_password" validate:"required"`
}

// Register creates an account. It does not start a session.
func (e *Exchanger) Register(ctx context.Context, in RegisterInput) Result {
	in.Email = strings.TrimSpace(in.Email)
	in.Nombre = strings.TrimSpace(in.Nombre)
	if fields := e.check(in); fields != nil {
		return invalid(fields)
	}
	if r, ok := checkNewPassword(in.Password, in.ConfirmPassword); !ok {
		return r
	}

	err := e.upstream.Register(ctx, backend.RegisterRequest{Nombre: in.Nombre, Email: in.Email, Password: in.Password})
	if err != nil {
		r := failure(classify(err))
		r.Fields = fieldErrors(err)
		return r
	}
	return Result{Success: true, Message: "Cuenta creada. Ya puede iniciar sesión."}
}

// checkNewPassword enforces the local password rules: matching confirmation,
// minimum length and a mix of upper case, lower case and digits.
func checkNewPassword(password, confirm string) (Result, bool) {
	if password != confirm {
		r := failure(auth.KindPasswordsDontMatch)
		r.Fields = map[string]string{"confirm_password": auth.KindPasswordsDontMatch.Message()}
		return r, false
	}
	if !strongEnough(password) {
		r := failure(auth.KindPasswordTooWeak)
		r.Fields = map[string]string{"password": auth.KindPasswordTooWeak.Message()}
		return r, false
	}
	return Result{}, true
}

func strongEnough(p string) bool {
	if len([]rune(p)) < minPasswordLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

type forgotForm struct {
	Email string `validate:"required,email"`
}

// ForgotPassword requests a reset link. Unknown emails report success so the
// form does not reveal which accounts exist.
func (e *Exchanger) ForgotPassword(ctx context.Context, email string) Result {
	email = strings.TrimSpace(email)
	if fields := e.check(forgotForm{Email: email}); fields != nil {
		return invalid(fields)
	}
	ok := Result{Success: true, Message: "Si el correo está registrado, recibirá un enlace para restablecer su contraseña."}

	if err := e.upstream.ForgotPassword(ctx, email); err != nil {
		switch kind := classify(err); kind {
		case auth.KindNotFound, auth.KindEmailExists, auth.KindInvalidCredentials:
			return ok
		default:
			return failure(kind)
		}
	}
	return ok
}

// ResetInput is the reset-password form.
type ResetInput struct {
	Token           string `validate:"required"`
	Password        string `form:"password" validate:"required"`
	ConfirmPassword string `form:"confirm_password" validate:"required"`
}

// ResetPassword sets a new password with the emailed token.
func (e *Exchanger) ResetPassword(ctx context.Context, in ResetInput) Result {
	if fields := e.check(in); fields != nil {
		if _, bad := fields["token"]; bad {
			return failure(auth.KindInvalidResetToken)
		}
		return invalid(fields)
	}
	if r, ok := checkNewPassword(in.Password, in.ConfirmPassword); !ok {
		return r
	}

	if err := e.upstream.ResetPassword(ctx, in.Token, in.Password); err != nil {
		kind := classify(err)
		switch kind {
		case auth.KindExpiredResetToken, auth.KindInvalidResetToken, auth.KindPasswordTooWeak:
		case auth.KindSessionExpired, auth.KindNotFound, auth.KindBadRequest, auth.KindInvalidCredentials:
			kind = auth.KindInvalidResetToken
		}
		r := failure(kind)
		r.Fields = fieldErrors(err)
		return r
	}
	return Result{Success: true, Message: "Contraseña actualizada. Inicie sesión con su nueva contraseña."}
}

// Logout destroys session s. Revoking the upstream token and auditing happen
// in the background and never block the logout.
func (e *Exchanger) Logout(ctx context.Context, s *auth.Session, meta Meta) error {
	if s == nil {
		return nil
	}
	if err := e.sessions.Destroy(ctx, s.ID, session.ReasonLogout); err != nil {
		return err
	}

	entry := &audit.LogEntry{
		Action:    "logout",
		Module:    "auth",
		UserID:    s.SubjectID,
		Email:     s.Email,
		SessionID: s.ID,
		IPAddress: meta.IP,
		RequestID: meta.RequestID,
		Result:    audit.ResultSuccess,
		Token:     s.Token,
	}
	token := s.Token
	done := make(chan struct{})
	safego.Go("credentials.logout", func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
		defer cancel()
		// The audit entry is authenticated with the token, so it goes first.
		e.audit.Ship(ctx, entry)
		if token == "" {
			return
		}
		if err := e.upstream.Logout(ctx, token); err != nil {
			slog.Debug("upstream logout failed", "user_id", s.SubjectID, "error", err)
		}
	})
	if e.waitBackground {
		<-done
	}
	return nil
}
