package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newPanicRouter(production bool) *gin.Engine {
	r := gin.New()
	r.Use(RecoveryMiddleware(production))
	r.Use(RequestIDMiddleware())
	boom := func(c *gin.Context) { panic("tabla <ventas> inexistente") }
	r.GET("/administracion/usuarios", boom)
	r.GET("/api/session", boom)
	return r
}

func TestRecoveryMiddleware_DevelopmentShowsDetails(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/administracion/usuarios", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	newPanicRouter(false).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<details>") {
		t.Error("development error page should contain a <details> block")
	}
	if !strings.Contains(body, "tabla &lt;ventas&gt; inexistente") {
		t.Error("panic value should be shown, HTML-escaped")
	}
	if !strings.Contains(body, "req-123") {
		t.Error("error page should show the request id")
	}
	if !strings.Contains(body, "goroutine") {
		t.Error("development error page should include the stack")
	}
}

func TestRecoveryMiddleware_ProductionHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	newPanicRouter(true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/administracion/usuarios", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "<details>") || strings.Contains(body, "inexistente") {
		t.Error("production error page must not expose panic details")
	}
	if !strings.Contains(body, "Ocurrió un error inesperado") {
		t.Error("error page heading missing")
	}
}

func TestRecoveryMiddleware_APIGetsJSON(t *testing.T) {
	w := httptest.NewRecorder()
	newPanicRouter(true).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Errorf("error = %v", body["error"])
	}
	if _, ok := body["detail"]; ok {
		t.Error("production JSON must not carry detail")
	}
}
