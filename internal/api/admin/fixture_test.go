package admin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/backend"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/credentials"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/crypto"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/middleware"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/session"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/web"
)

const testCookieName = "ventas_session"

// call is one request received by the fake backend.
type call struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// fakeBackend stands in for the REST API. Routes are keyed "METHOD /path";
// anything unrouted answers 404.
type fakeBackend struct {
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []call
}

func (b *fakeBackend) on(method, path string, status int, body any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.calls = append(b.calls, call{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Body: body})
	h, ok := b.routes[r.Method+" "+r.URL.Path]
	b.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"not found"}`))
		return
	}
	h(w, r)
}

// requests returns the calls made with method to path.
func (b *fakeBackend) requests(method, path string) []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []call
	for _, c := range b.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

type fixture struct {
	backend *fakeBackend
	mgr     *session.Manager
	signer  *auth.CookieSigner
	router  *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fb := &fakeBackend{routes: make(map[string]http.HandlerFunc)}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	client, err := backend.New(srv.URL, 5*time.Second, "ventas-dashboard-test")
	require.NoError(t, err)
	sealer, err := crypto.DeriveTokenSealer("admin-handlers-test-secret-0123456789", "admin")
	require.NoError(t, err)
	mgr := session.NewManager(session.NewMemoryStore(), sealer, time.Hour)
	signer := auth.NewCookieSigner("cookie-secret-for-tests-0123456789")
	cookie := session.NewCookie(testCookieName, false, signer)
	authAPI := backend.NewAuthAPI(client, time.Hour)

	d := Deps{
		Client:    client,
		Sessions:  mgr,
		Refresher: authAPI,
		Cookie:    cookie,
		Exchanger: credentials.NewExchanger(authAPI, mgr, nil),
	}

	renderer, err := web.NewRenderer()
	require.NoError(t, err)
	r := gin.New()
	r.HTMLRender = renderer
	r.Use(middleware.SessionMiddleware(mgr, cookie, authAPI))

	authH := NewAuthHandlers(d)
	r.GET("/login", authH.LoginPageHandler())
	r.POST("/login", authH.LoginHandler())
	r.GET("/api/session", authH.SessionHandler())

	dash := NewDashboardHandlers(d)
	r.GET("/unauthorized", dash.UnauthorizedHandler())

	users := NewUserHandlers(d)
	r.GET("/administracion/usuarios", users.ListUsersHandler())
	r.POST("/administracion/usuarios", users.CreateUserHandler())

	roles := NewRoleHandlers(d)
	r.GET("/administracion/roles/:id/permisos", roles.RolePermissionsHandler())
	r.POST("/administracion/roles/:id/permisos", roles.SaveRolePermissionsHandler())

	auditH := NewAuditHandlers(d)
	r.GET("/administracion/auditoria", auditH.ListAuditLogsHandler())
	r.GET("/administracion/auditoria/exportar", auditH.ExportAuditLogsHandler())

	cfg := NewConfigHandlers(d)
	r.POST("/administracion/configuracion", cfg.UpdateConfigHandler())

	for _, s := range Screens() {
		h := NewCatalogHandlers(d, s)
		r.GET(s.Path, h.ListHandler())
		r.POST(s.Path+"/:id/estado", h.SetActiveHandler())
		r.POST(s.Path+"/:id/eliminar", h.DeleteHandler())
	}

	return &fixture{backend: fb, mgr: mgr, signer: signer, router: r}
}

// login creates a session holding perms and returns its signed cookie value.
func (f *fixture) login(t *testing.T, perms ...auth.Permission) string {
	t.Helper()
	s, err := f.mgr.Create(context.Background(), auth.Claims{
		SubjectID:   "1",
		DisplayName: "Admin Principal",
		Email:       "admin@ventas.test",
		Roles:       []auth.Role{auth.RoleAdministrador},
		Permissions: perms,
		Token:       "access-admin",
		Expiry:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	v, err := f.signer.Sign(s.ID, s.SubjectID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return v
}

func (f *fixture) do(t *testing.T, method, target, cookie string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: testCookieName, Value: cookie})
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func setsSessionCookie(w *httptest.ResponseRecorder) bool {
	for _, v := range w.Header().Values("Set-Cookie") {
		if strings.HasPrefix(v, testCookieName+"=") && !strings.HasPrefix(v, testCookieName+"=;") {
			return true
		}
	}
	return false
}
