// config.go implements the system configuration screen.
package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	adminsvc "github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/admin"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
)

const configPath = "/administracion/configuracion"

// ConfigHandlers serves the configuration screen
type ConfigHandlers struct {
	base
}

// NewConfigHandlers creates a new ConfigHandlers instance
func NewConfigHandlers(d Deps) *ConfigHandlers {
	return &ConfigHandlers{base: newBase(d)}
}

type configView struct {
	Categories []adminsvc.Category
	Failed     int
	Restart    bool
}

func paramField(id int64) string {
	return "param." + strconv.FormatInt(id, 10)
}

// GetConfigHandler renders every parameter grouped by category.
// GET /administracion/configuracion
func (h *ConfigHandlers) GetConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		cats, err := adminsvc.NewSettings(h.api(c)).Categories(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		p := h.view(c, "Configuración", "configuracion")
		p.Data = configView{Categories: cats}
		c.HTML(http.StatusOK, "config", p)
	}
}

// submittedValues reads param.<id> fields. Boolean parameters post a hidden
// "false" followed by the checkbox, so the last value wins.
func submittedValues(c *gin.Context, params []backend.Parameter) map[int64]string {
	values := make(map[int64]string)
	for _, p := range params {
		vs := c.PostFormArray(paramField(p.ID))
		if len(vs) == 0 {
			continue
		}
		values[p.ID] = vs[len(vs)-1]
	}
	return values
}

func changeError(r adminsvc.ChangeResult) string {
	if errors.Is(r.Err, adminsvc.ErrInvalidValue) {
		switch r.Parameter.TipoDato {
		case backend.TipoNumero:
			return "Debe ser un número."
		case backend.TipoBooleano:
			return "Debe ser verdadero o falso."
		}
		return "Valor inválido."
	}
	if apiErr, ok := backend.AsAPIError(r.Err); ok {
		if msg := apiErr.FieldError("valor"); msg != "" {
			return msg
		}
		return apiErr.UserMessage()
	}
	return "No se pudo guardar."
}

// UpdateConfigHandler saves every changed parameter, one request each. A
// failed parameter does not stop or undo the others.
// POST /administracion/configuracion
func (h *ConfigHandlers) UpdateConfigHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		api := h.api(c)
		params, err := api.Config.All(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		results := adminsvc.NewSettings(api).Apply(c.Request.Context(), params, submittedValues(c, params))

		if len(results) == 0 {
			flash(c, notify.Toast{Level: notify.LevelInfo, Message: "No hay cambios que guardar."})
			c.Redirect(http.StatusSeeOther, configPath)
			return
		}

		errs := make(map[string]string)
		saved := make(map[int64]backend.Parameter)
		status := http.StatusUnprocessableEntity
		for _, r := range results {
			if r.Err == nil {
				saved[r.Parameter.ID] = r.Parameter
				continue
			}
			if errors.Is(r.Err, backend.ErrSessionExpired) || session.WasExpired(c) {
				h.expire(c)
				return
			}
			if !errors.Is(r.Err, adminsvc.ErrInvalidValue) {
				status = upstreamStatus(r.Err)
			}
			errs[paramField(r.Parameter.ID)] = changeError(r)
		}
		if n := len(saved); n > 0 {
			flash(c, notify.Success(strconv.Itoa(n)+" parámetro(s) actualizado(s)."))
		}
		if adminsvc.NeedsRestart(results) {
			flash(c, notify.Toast{Level: notify.LevelWarning, Title: "Reinicio requerido", Message: "Algunos cambios se aplicarán después de reiniciar el sistema."})
		}

		if len(errs) == 0 {
			c.Redirect(http.StatusSeeOther, configPath)
			return
		}

		for i, p := range params {
			if s, ok := saved[p.ID]; ok {
				params[i] = s
			}
		}
		p := h.view(c, "Configuración", "configuracion")
		p.Errors = errs
		p.Data = configView{Categories: adminsvc.GroupParameters(params), Failed: len(errs), Restart: adminsvc.NeedsRestart(results)}
		c.HTML(status, "config", p)
	}
}
