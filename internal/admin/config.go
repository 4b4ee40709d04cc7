package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
)

// ErrInvalidValue is returned for a parameter value that does not match its data type.
var ErrInvalidValue = errors.New("invalid parameter value")

// Category is the set of parameters shown under one heading.
type Category struct {
	Name       string
	Parameters []backend.Parameter
}

// Settings runs the system configuration screen.
type Settings struct {
	api *backend.API
}

// NewSettings returns the configuration service for one caller's API.
func NewSettings(api *backend.API) *Settings {
	return &Settings{api: api}
}

// Categories returns every parameter grouped by category, categories and
// parameters sorted by name.
func (s *Settings) Categories(ctx context.Context) ([]Category, error) {
	params, err := s.api.Config.All(ctx)
	if err != nil {
		return nil, err
	}
	return GroupParameters(params), nil
}

// GroupParameters groups params by category. Parameters without a category go under "General".
func GroupParameters(params []backend.Parameter) []Category {
	byName := make(map[string][]backend.Parameter)
	for _, p := range params {
		cat := strings.TrimSpace(p.Categoria)
		if cat == "" {
			cat = "General"
		}
		byName[cat] = append(byName[cat], p)
	}
	out := make([]Category, 0, len(byName))
	for name, ps := range byName {
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Nombre < ps[j].Nombre })
		out = append(out, Category{Name: name, Parameters: ps})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NormalizeValue checks value against the parameter's data type and returns
// its canonical form.
func NormalizeValue(p backend.Parameter, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch p.TipoDato {
	case backend.TipoNumero:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "", fmt.Errorf("%s: %w: %q no es un número", p.Nombre, ErrInvalidValue, value)
		}
		return value, nil
	case backend.TipoBooleano:
		switch strings.ToLower(value) {
		case "true", "1", "on", "si", "sí":
			return "true", nil
		case "false", "0", "off", "no", "":
			return "false", nil
		}
		return "", fmt.Errorf("%s: %w: %q no es un valor booleano", p.Nombre, ErrInvalidValue, value)
	default:
		return value, nil
	}
}

// ChangeResult is the outcome of one parameter write in a batch edit.
type ChangeResult struct {
	Parameter backend.Parameter
	Value     string
	Err       error
}

// Apply writes every changed parameter with its own request. A failure does
// not stop or undo the others; results are reported per parameter in
// parameter-name order. Unchanged parameters are skipped.
func (s *Settings) Apply(ctx context.Context, params []backend.Parameter, values map[int64]string) []ChangeResult {
	sorted := make([]backend.Parameter, len(params))
	copy(sorted, params)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Nombre < sorted[j].Nombre })

	var results []ChangeResult
	for _, p := range sorted {
		raw, ok := values[p.ID]
		if !ok {
			continue
		}
		value, err := NormalizeValue(p, raw)
		if err != nil {
			results = append(results, ChangeResult{Parameter: p, Value: raw, Err: err})
			continue
		}
		if value == p.Valor {
			continue
		}
		updated, err := s.api.Config.Update(ctx, p.ID, value)
		r := ChangeResult{Parameter: p, Value: value, Err: err}
		if err == nil && updated != nil && updated.ID != 0 {
			r.Parameter = *updated
		}
		results = append(results, r)
	}
	return results
}

// NeedsRestart reports whether any successful change requires a restart.
func NeedsRestart(results []ChangeResult) bool {
	for _, r := range results {
		if r.Err == nil && r.Parameter.RequiereReinicio {
			return true
		}
	}
	return false
}
