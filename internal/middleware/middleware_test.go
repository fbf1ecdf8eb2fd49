package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/auth"
	"github.com/meetlines/meetlines/internal/config"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/observ"
	"github.com/meetlines/meetlines/internal/repository/memory"
	"github.com/meetlines/meetlines/internal/tenancy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type outcomeCounter map[string]int

func (o outcomeCounter) TenantOutcome(outcome string) { o[outcome]++ }

func newResolver(t *testing.T, lookup tenancy.ProjectLookup) *tenancy.Resolver {
	t.Helper()
	return tenancy.NewResolver(tenancy.Options{
		BaseDomain:           "meet-lines.com",
		ReservedSubdomains:   config.DefaultReservedSubdomains,
		PublicPathPrefixes:   config.DefaultPublicPathPrefixes,
		TrustedOriginSchemes: []string{"https"},
	}, lookup)
}

func seedProject(t *testing.T, store *memory.Store, sub string, status models.ProjectStatus) *models.Project {
	t.Helper()
	p, err := store.Projects.Create(context.Background(), &models.Project{
		OwnerID:   uuid.New(),
		Name:      sub,
		Subdomain: sub,
		Status:    status,
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return p
}

// tenantRouter echoes the tenant seen by the handler, both through the gin
// context and through the request context.
func tenantRouter(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.NoRoute(func(c *gin.Context) {
		fromGin, _ := GetTenant(c)
		fromCtx := tenancy.TenantID(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"gin": fromGin.ID.String(), "ctx": fromCtx.String()})
	})
	return r
}

func do(r http.Handler, host, path, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Host = host
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTenantMiddleware(t *testing.T) {
	store := memory.New()
	acme := seedProject(t, store, "acme", models.ProjectActive)
	seedProject(t, store, "sleepy", models.ProjectDisabled)

	tests := []struct {
		name       string
		host, path string
		origin     string
		wantStatus int
		wantTenant uuid.UUID
	}{
		{"tenant host", "acme.meet-lines.com", "/api/availability", "", http.StatusOK, acme.ID},
		{"port and case", "ACME.meet-lines.com:8081", "/api/services", "", http.StatusOK, acme.ID},
		{"technical host with origin", "services.meet-lines.com", "/api/appointments", "https://acme.meet-lines.com", http.StatusOK, acme.ID},
		{"technical host without origin", "api.meet-lines.com", "/api/appointments", "", http.StatusOK, uuid.Nil},
		{"untrusted origin scheme", "api.meet-lines.com", "/api/appointments", "http://acme.meet-lines.com", http.StatusOK, uuid.Nil},
		{"foreign origin", "api.meet-lines.com", "/api/appointments", "https://acme.evil.com", http.StatusOK, uuid.Nil},
		{"public path on unknown tenant", "ghost.meet-lines.com", "/api/auth/login", "", http.StatusOK, uuid.Nil},
		{"base domain", "meet-lines.com", "/api/appointments", "", http.StatusOK, uuid.Nil},
		{"foreign host", "localhost:8081", "/api/appointments", "", http.StatusOK, uuid.Nil},
		{"invalid subdomain", "a.meet-lines.com", "/api/appointments", "", http.StatusOK, uuid.Nil},
		{"unknown tenant", "ghost.meet-lines.com", "/api/appointments", "", http.StatusNotFound, uuid.Nil},
		{"disabled tenant", "sleepy.meet-lines.com", "/api/appointments", "", http.StatusNotFound, uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := outcomeCounter{}
			r := tenantRouter(TenantMiddleware(newResolver(t, store.Projects), counter, zap.NewNop()))
			w := do(r, tt.host, tt.path, tt.origin)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusNotFound {
				if w.Body.String() != "Tenant not found" {
					t.Errorf("body = %q, want %q", w.Body.String(), "Tenant not found")
				}
				if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
					t.Errorf("content type = %q", ct)
				}
				if counter["rejected"] != 1 {
					t.Errorf("outcomes = %v, want one rejected", counter)
				}
				return
			}
			want := `{"ctx":"` + tt.wantTenant.String() + `","gin":"` + tt.wantTenant.String() + `"}`
			if w.Body.String() != want {
				t.Errorf("body = %s, want %s", w.Body.String(), want)
			}
		})
	}
}

type countingLookup struct {
	calls int
	inner tenancy.ProjectLookup
}

func (l *countingLookup) GetBySubdomain(ctx context.Context, sub string) (*models.Project, error) {
	l.calls++
	return l.inner.GetBySubdomain(ctx, sub)
}

func TestTenantMiddlewareResolvesOnce(t *testing.T) {
	store := memory.New()
	acme := seedProject(t, store, "acme", models.ProjectActive)
	lookup := &countingLookup{inner: store.Projects}
	mw := TenantMiddleware(newResolver(t, lookup), nil, zap.NewNop())

	w := do(tenantRouter(mw, mw), "acme.meet-lines.com", "/api/services", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if lookup.calls != 1 {
		t.Errorf("lookup called %d times, want 1", lookup.calls)
	}
	if want := `{"ctx":"` + acme.ID.String() + `","gin":"` + acme.ID.String() + `"}`; w.Body.String() != want {
		t.Errorf("body = %s, want %s", w.Body.String(), want)
	}
}

type failingLookup struct{}

func (failingLookup) GetBySubdomain(ctx context.Context, sub string) (*models.Project, error) {
	return nil, errors.New("connection reset")
}

func TestTenantLookupFailureContinuesAnonymous(t *testing.T) {
	counter := outcomeCounter{}
	r := tenantRouter(TenantMiddleware(newResolver(t, failingLookup{}), counter, zap.NewNop()))

	w := do(r, "acme.meet-lines.com", "/api/services", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if counter[tenancy.ReasonLookupError] != 1 {
		t.Errorf("outcomes = %v, want one lookup_error", counter)
	}
}

func token(t *testing.T, projectID uuid.UUID, role auth.Role) string {
	t.Helper()
	tok, err := auth.GenerateToken(uuid.New(), projectID, "x@example.com", role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + tok
}

func TestAuthMiddleware(t *testing.T) {
	store := memory.New()
	acme := seedProject(t, store, "acme", models.ProjectActive)
	other := uuid.New()

	r := gin.New()
	r.Use(TenantMiddleware(newResolver(t, store.Projects), nil, zap.NewNop()))
	protected := r.Group("/api", AuthMiddleware(testSecret))
	protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"project": GetProjectID(c).String(), "role": GetRole(c)})
	})
	protected.GET("/owner-only", RequireRole(auth.RoleOwner), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name       string
		host, path string
		header     string
		wantStatus int
	}{
		{"missing header", "acme.meet-lines.com", "/api/me", "", http.StatusUnauthorized},
		{"bad scheme", "acme.meet-lines.com", "/api/me", "Token abc", http.StatusUnauthorized},
		{"bad token", "acme.meet-lines.com", "/api/me", "Bearer abc", http.StatusUnauthorized},
		{"matching tenant", "acme.meet-lines.com", "/api/me", token(t, acme.ID, auth.RoleStaff), http.StatusOK},
		{"other tenant's token", "acme.meet-lines.com", "/api/me", token(t, other, auth.RoleOwner), http.StatusForbidden},
		{"no tenant host uses claim", "api.meet-lines.com", "/api/me", token(t, other, auth.RoleOwner), http.StatusOK},
		{"role allowed", "acme.meet-lines.com", "/api/owner-only", token(t, acme.ID, auth.RoleOwner), http.StatusNoContent},
		{"role denied", "acme.meet-lines.com", "/api/owner-only", token(t, acme.ID, auth.RoleStaff), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Host = tt.host
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := gin.New()
	r.GET("/", OptionalAuth(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, string(GetRole(c)))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "" {
		t.Fatalf("anonymous: status %d body %q", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", token(t, uuid.New(), auth.RoleCustomer))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "customer" {
		t.Fatalf("customer: status %d body %q", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: status %d, want 401", w.Code)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get(HeaderRequestID) == "" {
		t.Error("expected generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "abc-123" {
		t.Errorf("request id = %q, want caller's", got)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}, "meet-lines.com"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"https://acme.meet-lines.com", true},
		{"https://meet-lines.com", true},
		{"http://acme.meet-lines.com", false},
		{"https://meet-lines.com.evil.io", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Errorf("%s: preflight status = %d", tt.origin, w.Code)
		}
		got := w.Header().Get("Access-Control-Allow-Origin") == tt.origin
		if got != tt.want {
			t.Errorf("%s: allowed = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestMetricsLabelsByRoute(t *testing.T) {
	m := observ.NewMetrics(prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/appointments/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/appointments/" + uuid.NewString(), "/api/appointments/" + uuid.NewString(), "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/api/appointments/:id", "200")); got != 2 {
		t.Errorf("route counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}
