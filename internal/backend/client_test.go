package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/notify"
)

// fakeAuth is an Authenticator whose token changes on Refresh.
type fakeAuth struct {
	mu         sync.Mutex
	token      string
	next       string
	refreshErr error
	refreshes  int
	logouts    int
}

func (f *fakeAuth) Token() (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &oauth2.Token{AccessToken: f.token, TokenType: "Bearer"}, nil
}

func (f *fakeAuth) Refresh(_ context.Context, stale string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.token = f.next
	return nil
}

func (f *fakeAuth) ForceLogout(context.Context) {
	f.mu.Lock()
	f.logouts++
	f.mu.Unlock()
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api/v1", 5*time.Second, "ventas-dashboard-test")
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New("ftp://example.com", time.Second, "")
	assert.Error(t, err)
	_, err = New("::not a url", time.Second, "")
	assert.Error(t, err)
}

func TestClient_AttachesLatestBearer(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		assert.Equal(t, "/api/v1/clientes", r.URL.Path)
		assert.Equal(t, "ventas-dashboard-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"data":[],"total":0}`))
	})
	a := &fakeAuth{token: "one"}
	api := NewAPI(c.WithAuth(a))

	_, err := api.Clients.List(context.Background(), ListParams{})
	require.NoError(t, err)
	a.mu.Lock()
	a.token = "two"
	a.mu.Unlock()
	_, err = api.Clients.List(context.Background(), ListParams{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer one", "Bearer two"}, seen)
}

func TestClient_ForwardsRequestID(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(RequestIDHeader))
		_, _ = w.Write([]byte(`{"data":[],"total":0}`))
	})
	api := NewAPI(c)

	_, err := api.Clients.List(WithRequestID(context.Background(), "req-42"), ListParams{})
	require.NoError(t, err)
	_, err = api.Clients.List(context.Background(), ListParams{})
	require.NoError(t, err)

	assert.Equal(t, []string{"req-42", ""}, seen)
}

func TestClient_401RefreshesAndRetriesOnce(t *testing.T) {
	var calls atomic.Int32
	var tokens []string
	var mu sync.Mutex
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		mu.Lock()
		tokens = append(tokens, r.Header.Get("Authorization"))
		mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"nombre":"Ana"}`, string(body), "body is replayed on retry")
		if r.Header.Get("Authorization") == "Bearer stale" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":1,"nombre":"Ana"}`))
	})
	a := &fakeAuth{token: "stale", next: "fresh"}

	var out Customer
	err := c.WithAuth(a).Post(context.Background(), "/clientes", map[string]string{"nombre": "Ana"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Ana", out.Nombre)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []string{"Bearer stale", "Bearer fresh"}, tokens)
	assert.Equal(t, 1, a.refreshes)
	assert.Equal(t, 0, a.logouts)
}

func TestClient_Second401ForcesLogout(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	a := &fakeAuth{token: "stale", next: "also-rejected"}
	n := &notify.Collector{}

	err := c.WithAuth(a).WithNotifier(n).Get(context.Background(), "/usuarios", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(2), calls.Load(), "exactly one retry")
	assert.Equal(t, 1, a.refreshes)
	assert.Equal(t, 1, a.logouts)
	assert.Empty(t, n.Drain(), "expiry redirects to login instead of toasting")
}

func TestClient_FailedRefreshForcesLogout(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	a := &fakeAuth{token: "stale", refreshErr: errors.New("refresh rejected")}

	err := c.WithAuth(a).Get(context.Background(), "/usuarios", nil, nil)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), calls.Load(), "no retry without a new token")
	assert.Equal(t, 1, a.logouts)
}

func TestClient_403NoRetryNoToast(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"No autorizado"}`))
	})
	a := &fakeAuth{token: "t"}
	n := &notify.Collector{}

	err := c.WithAuth(a).WithNotifier(n).Delete(context.Background(), "/roles/3")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, a.refreshes)
	assert.Empty(t, n.Drain())

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "No autorizado", apiErr.Message)
}

func TestClient_StatusTableToasts(t *testing.T) {
	tests := []struct {
		status    int
		wantKind  auth.ErrorKind
		wantTitle string
	}{
		{http.StatusBadRequest, auth.KindBadRequest, "Solicitud incorrecta"},
		{http.StatusNotFound, auth.KindNotFound, "No encontrado"},
		{http.StatusConflict, auth.KindConflict, "Conflicto"},
		{http.StatusUnprocessableEntity, auth.KindValidation, "Datos inválidos"},
		{http.StatusTooManyRequests, auth.KindRateLimited, "Demasiadas solicitudes"},
		{http.StatusInternalServerError, auth.KindServerError, "Error del servidor"},
		{http.StatusBadGateway, auth.KindServerError, "Error del servidor"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message":"server words"}`))
			})
			n := &notify.Collector{}
			err := c.WithAuth(&fakeAuth{token: "t"}).WithNotifier(n).Get(context.Background(), "/ventas", nil, nil)

			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantKind, apiErr.Kind)
			assert.Equal(t, "server words", apiErr.Message)

			toasts := n.Drain()
			require.Len(t, toasts, 1)
			assert.Equal(t, notify.LevelError, toasts[0].Level)
			assert.Equal(t, tt.wantTitle, toasts[0].Title)
			assert.Equal(t, tt.wantKind.Message(), toasts[0].Message)
		})
	}
}

func TestClient_ExplicitCodeOverridesStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"weak","code":"PASSWORD_TOO_WEAK"}`))
	})
	err := c.Post(context.Background(), "/auth/register", map[string]string{}, nil)
	assert.Equal(t, auth.KindPasswordTooWeak, KindOf(err))
}

func TestClient_ValidationFieldsInlineOnly(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","email"],"msg":"correo inválido"},{"loc":["body","nombre"],"msg":"requerido"}]}`))
	})
	n := &notify.Collector{}
	err := c.WithNotifier(n).Post(context.Background(), "/usuarios", map[string]string{}, nil)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, auth.KindValidation, apiErr.Kind)
	assert.Equal(t, "correo inválido", apiErr.FieldError("email"))
	assert.Equal(t, "requerido", apiErr.FieldError("nombre"))
	assert.Equal(t, "", apiErr.FieldError("telefono"))
	assert.Empty(t, n.Drain())
}

func TestClient_ErrorsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Datos inválidos","errors":{"precio":["debe ser positivo"]}}`))
	})
	err := c.Post(context.Background(), "/productos", map[string]string{}, nil)
	apiErr, _ := AsAPIError(err)
	require.NotNil(t, apiErr)
	assert.Equal(t, "debe ser positivo", apiErr.FieldError("precio"))
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	c, err := New(srv.URL, time.Second, "")
	require.NoError(t, err)
	srv.Close()

	n := &notify.Collector{}
	err = c.WithNotifier(n).Get(context.Background(), "/ventas", nil, nil)
	assert.Equal(t, auth.KindNetworkError, KindOf(err))
	toasts := n.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Error de conexión", toasts[0].Title)
}

func TestClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := &notify.Collector{}
	err := c.WithNotifier(n).Get(ctx, "/ventas", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, n.Drain(), "canceled requests are not toasted")
}

func TestClient_ListEnvelopeAndParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("pagina"))
		assert.Equal(t, "10", q.Get("limite"))
		assert.Equal(t, "lima", q.Get("busqueda"))
		assert.Equal(t, "true", q.Get("activo"))
		assert.False(t, q.Has("vacio"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":  []map[string]any{{"id": 11, "nombre": "Cusco 3D/2N", "precio": 450.5}},
			"total": 47,
		})
	})
	list, err := NewAPI(c).Products.List(context.Background(), ListParams{
		Page: 2, Limit: 10, Search: "lima",
		Filters: map[string]string{"activo": "true", "vacio": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 47, list.Total)
	require.Len(t, list.Data, 1)
	assert.Equal(t, 450.5, list.Data[0].Precio)
}

func TestRolesAPI_SetPermissionsSendsFullSet(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/roles/9", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"permisos":["ventas.ver","roles.ver"]}`, string(body))
		w.WriteHeader(http.StatusNoContent)
	})
	err := NewAPI(c).Roles.SetPermissions(context.Background(), 9, []string{"ventas.ver", "roles.ver"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRolesAPI_SetPermissionsEmptyIsArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"permisos":[]}`, string(body))
	})
	require.NoError(t, NewAPI(c).Roles.SetPermissions(context.Background(), 1, nil))
}

func TestResource_SetActive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/roles/4/estado", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"activo":false}`, string(body))
	})
	require.NoError(t, NewAPI(c).Roles.SetActive(context.Background(), 4, false))
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/roles/3/estado": "roles",
		"usuarios":        "usuarios",
		"/auth/login":     "auth",
		"/":               "root",
	}
	for in, want := range tests {
		assert.Equal(t, want, resourceOf(in), in)
	}
}
