// Package auth - errors.go defines the client-side error taxonomy and the
// classification of upstream auth failures into it.
package auth

import (
	"net/http"
	"strings"
)

// ErrorKind is a user-facing error category independent of exact server wording.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindInvalidCredentials
	KindAccountLocked
	KindAccountDisabled
	KindEmailExists
	KindUsernameExists
	KindPasswordTooWeak
	KindInvalidResetToken
	KindExpiredResetToken
	KindPasswordsDontMatch
	KindNetworkError
	KindServerError
	KindForbidden
	KindSessionExpired
	KindValidation
	KindNotFound
	KindConflict
	KindRateLimited
	KindBadRequest
)

type kindInfo struct {
	code    string
	title   string
	message string
}

var kinds = map[ErrorKind]kindInfo{
	KindUnknown:            {"unknown_error", "Error", "Ocurrió un error inesperado. Intente nuevamente."},
	KindInvalidCredentials: {"invalid_credentials", "Credenciales incorrectas", "El correo electrónico o la contraseña no son correctos."},
	KindAccountLocked:      {"account_locked", "Cuenta bloqueada", "Su cuenta fue bloqueada por múltiples intentos fallidos. Intente más tarde o contacte al administrador."},
	KindAccountDisabled:    {"account_disabled", "Cuenta deshabilitada", "Su cuenta está deshabilitada. Contacte al administrador."},
	KindEmailExists:        {"email_exists", "Correo ya registrado", "Ya existe una cuenta con este correo electrónico."},
	KindUsernameExists:     {"username_exists", "Usuario ya registrado", "El nombre de usuario ya está en uso."},
	KindPasswordTooWeak:    {"password_too_weak", "Contraseña débil", "La contraseña debe tener al menos 8 caracteres e incluir mayúsculas, minúsculas y números."},
	KindInvalidResetToken:  {"invalid_reset_token", "Enlace inválido", "El enlace de recuperación no es válido."},
	KindExpiredResetToken:  {"expired_reset_token", "Enlace expirado", "El enlace de recuperación expiró. Solicite uno nuevo."},
	KindPasswordsDontMatch: {"passwords_dont_match", "Las contraseñas no coinciden", "La confirmación no coincide con la nueva contraseña."},
	KindNetworkError:       {"network_error", "Error de conexión", "No se pudo conectar con el servidor. Verifique su conexión."},
	KindServerError:        {"server_error", "Error del servidor", "Error interno del servidor. Intente nuevamente más tarde."},
	KindForbidden:          {"forbidden", "Acceso denegado", "No tiene permisos para realizar esta acción."},
	KindSessionExpired:     {"session_expired", "Sesión expirada", "Su sesión expiró. Inicie sesión nuevamente."},
	KindValidation:         {"validation_error", "Datos inválidos", "Los datos enviados no son válidos."},
	KindNotFound:           {"not_found", "No encontrado", "El recurso solicitado no existe."},
	KindConflict:           {"conflict", "Conflicto", "El recurso ya existe o fue modificado por otro usuario."},
	KindRateLimited:        {"rate_limited", "Demasiadas solicitudes", "Demasiadas solicitudes. Espere un momento e intente nuevamente."},
	KindBadRequest:         {"bad_request", "Solicitud incorrecta", "La solicitud no es válida."},
}

// Code returns the snake_case identifier of k, also used as a metrics label.
func (k ErrorKind) Code() string { return kinds[k].code }

// String implements fmt.Stringer.
func (k ErrorKind) String() string { return k.Code() }

// Title returns the Spanish alert title.
func (k ErrorKind) Title() string { return kinds[k].title }

// Message returns the Spanish default message.
func (k ErrorKind) Message() string { return kinds[k].message }

// KindFromCode maps an explicit server error code ("INVALID_CREDENTIALS",
// "account-locked", ...) onto a kind.
func KindFromCode(code string) (ErrorKind, bool) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "-", "_"))
	if norm == "" {
		return KindUnknown, false
	}
	for k, info := range kinds {
		if info.code == norm {
			return k, true
		}
	}
	return KindUnknown, false
}

// KindForStatus maps an HTTP status onto the fixed status message table.
// Statuses outside the table yield KindUnknown.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 0:
		return KindNetworkError
	case status == http.StatusBadRequest:
		return KindBadRequest
	case status == http.StatusUnauthorized:
		return KindSessionExpired
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	}
	return KindUnknown
}

var credentialPatterns = []string{
	"credencial",
	"credential",
	"contraseña incorrecta",
	"incorrect password",
	"invalid password",
	"wrong password",
}

var keywordRules = []struct {
	kind ErrorKind
	any  []string
}{
	{KindAccountLocked, []string{"bloquead", "locked"}},
	{KindAccountDisabled, []string{"deshabilitad", "inactiv", "disabled", "desactivad"}},
	{KindEmailExists, []string{"correo ya", "email ya", "email already", "email exists", "correo electrónico ya"}},
	{KindUsernameExists, []string{"usuario ya", "username already", "username exists", "username taken"}},
	{KindPasswordTooWeak, []string{"débil", "debil", "weak", "contraseña debe", "password must"}},
	{KindPasswordsDontMatch, []string{"no coinciden", "do not match", "don't match"}},
	{KindExpiredResetToken, []string{"expirad", "expired"}},
	{KindInvalidResetToken, []string{"token inválido", "token invalido", "invalid token", "token no válido"}},
	{KindNetworkError, []string{"network", "conexión", "timeout"}},
}

// Classify maps an upstream failure onto a kind.
//
// An explicit server code always wins. Otherwise the message is matched
// heuristically in a fixed order: credential pattern, unambiguous status
// codes, keyword rules, then the remaining status table.
func Classify(status int, code, message string) ErrorKind {
	if k, ok := KindFromCode(code); ok {
		return k
	}

	msg := strings.ToLower(message)
	for _, p := range credentialPatterns {
		if strings.Contains(msg, p) {
			return KindInvalidCredentials
		}
	}

	switch {
	case status == 0:
		return KindNetworkError
	case status == http.StatusUnauthorized:
		return KindInvalidCredentials
	case status == http.StatusLocked:
		return KindAccountLocked
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	}

	for _, rule := range keywordRules {
		for _, kw := range rule.any {
			if strings.Contains(msg, kw) {
				return rule.kind
			}
		}
	}

	return KindForStatus(status)
}

// ClassifyLogin is Classify for the login path. Account-existence kinds and
// unknown-user responses collapse into KindInvalidCredentials so the login form
// never reveals whether an email is registered.
func ClassifyLogin(status int, code, message string) ErrorKind {
	switch k := Classify(status, code, message); k {
	case KindEmailExists, KindUsernameExists, KindNotFound:
		return KindInvalidCredentials
	default:
		return k
	}
}
