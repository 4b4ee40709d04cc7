package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCookie_WriteRead(t *testing.T) {
	ck := NewCookie("ventas_session", true, auth.NewCookieSigner(testSecret))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if err := ck.Write(c, &auth.Session{ID: "sid-1", SubjectID: "7"}, time.Hour); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	header := w.Header().Get("Set-Cookie")
	for _, want := range []string{"ventas_session=", "HttpOnly", "Secure", "SameSite=Lax", "Path=/"} {
		if !strings.Contains(header, want) {
			t.Errorf("Set-Cookie %q missing %q", header, want)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Cookie", strings.Split(header, ";")[0])
	c2, _ := gin.CreateTestContext(httptest.NewRecorder())
	c2.Request = req
	id, err := ck.Read(c2)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if id != "sid-1" {
		t.Errorf("Read() = %q, want sid-1", id)
	}
}

func TestCookie_ReadMissingOrTampered(t *testing.T) {
	ck := NewCookie("ventas_session", false, auth.NewCookieSigner(testSecret))

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := ck.Read(c); err == nil {
		t.Error("Read() without cookie should fail")
	}

	c.Request.AddCookie(&http.Cookie{Name: "ventas_session", Value: "forged.value.here"})
	if _, err := ck.Read(c); err == nil {
		t.Error("Read() with forged cookie should fail")
	}
}

func TestCookie_Clear(t *testing.T) {
	ck := NewCookie("ventas_session", false, auth.NewCookieSigner(testSecret))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	ck.Clear(c)
	if h := w.Header().Get("Set-Cookie"); !strings.Contains(h, "Max-Age=0") {
		t.Errorf("Set-Cookie = %q, want Max-Age=0", h)
	}
}
