package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/appointment"
	"github.com/meetlines/meetlines/internal/auth"
	"github.com/meetlines/meetlines/internal/availability"
	"github.com/meetlines/meetlines/internal/config"
	"github.com/meetlines/meetlines/internal/events"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository/memory"
	"github.com/meetlines/meetlines/internal/tenancy"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret = "test-secret"
	tenantHost = "acme.meet-lines.com"
)

// Sunday 2026-10-18, noon UTC. The next day is a Monday.
var sundayNoon = time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)

const policyJSON = `{"transactional":{"appointmentsEnabled":true,"timezone":"UTC","slotDurationMinutes":60,
	"businessHours":{"monday":{"open":"09:00","close":"12:00"}},
	"cancellation":{"allowed":true,"minHoursBefore":24}}}`

type fakePinger struct{ err error }

func (p fakePinger) Health(ctx context.Context) error { return p.err }

type fixture struct {
	t        *testing.T
	store    *memory.Store
	router   *gin.Engine
	bus      *events.MemoryBus
	owner    *models.User
	project  *models.Project
	employee *models.Employee
	service  *models.Service
	customer *models.Customer
}

func newFixture(t *testing.T, pinger Pinger) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	f := &fixture{t: t, store: memory.New(), bus: events.NewMemoryBus()}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("fixture: %v", err)
		}
	}

	f.owner, err = f.store.Users.Create(ctx, "owner@acme.test", "Owner", string(hash))
	must(err)
	f.project, err = f.store.Projects.Create(ctx, &models.Project{OwnerID: f.owner.ID, Name: "Acme Salon", Subdomain: "acme"})
	must(err)
	_, err = f.store.BotConfigs.Upsert(ctx, f.project.ID, []byte(policyJSON))
	must(err)
	f.employee, err = f.store.Employees.Create(ctx, &models.Employee{ProjectID: f.project.ID, Name: "Ana", Active: true})
	must(err)
	f.service, err = f.store.Services.Create(ctx, &models.Service{
		ProjectID:       f.project.ID,
		Name:            "Haircut",
		DurationMinutes: 60,
		Price:           decimal.RequireFromString("30.00"),
		Currency:        "USD",
		Active:          true,
	})
	must(err)
	f.customer, err = f.store.Customers.Upsert(ctx, &models.Customer{ProjectID: f.project.ID, Name: "Carla", Phone: "+573001112233"})
	must(err)

	clock := func() time.Time { return sundayNoon }
	engine := availability.NewEngine(f.store.BotConfigs, f.store.Employees, f.store.Services, f.store.Appointments, zap.NewNop())
	engine.Now = clock
	lifecycle := appointment.NewService(f.store.Appointments, f.store.Services, f.store.Employees, f.store.Customers, engine, zap.NewNop())
	lifecycle.Now = clock
	lifecycle.Publisher = f.bus

	resolver := tenancy.NewResolver(tenancy.Options{
		BaseDomain:           "meet-lines.com",
		ReservedSubdomains:   config.DefaultReservedSubdomains,
		PublicPathPrefixes:   config.DefaultPublicPathPrefixes,
		ServicePathKeywords:  config.DefaultServicePathKeywords,
		TrustedOriginSchemes: []string{"https"},
	}, f.store.Projects)

	if pinger == nil {
		pinger = fakePinger{}
	}
	f.router = NewRouter(Deps{
		Users:        f.store.Users,
		Projects:     f.store.Projects,
		Employees:    f.store.Employees,
		Services:     f.store.Services,
		BotConfigs:   f.store.BotConfigs,
		Appointments: f.store.Appointments,
		Resolver:     resolver,
		Engine:       engine,
		Lifecycle:    lifecycle,
		Subscriber:   f.bus,
		DB:           pinger,
		JWTSecret:    testSecret,
		TokenTTL:     time.Hour,
		BaseDomain:   "meet-lines.com",
		Logger:       zap.NewNop(),
	})
	return f
}

func (f *fixture) token(userID uuid.UUID, role auth.Role) string {
	f.t.Helper()
	tok, err := auth.GenerateToken(userID, f.project.ID, "", role, testSecret, time.Hour)
	if err != nil {
		f.t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func (f *fixture) ownerToken() string    { return f.token(f.owner.ID, auth.RoleOwner) }
func (f *fixture) customerToken() string { return f.token(f.customer.ID, auth.RoleCustomer) }

func (f *fixture) do(method, host, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			f.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Host = host
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d; body %s", w.Code, status, w.Body.String())
	}
}

func wantErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code appointment.Code) {
	t.Helper()
	wantStatus(t, w, status)
	body := decode[map[string]any](t, w)
	if body["code"] != string(code) {
		t.Fatalf("code = %v, want %s; body %s", body["code"], code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	wantStatus(t, f.do(http.MethodGet, "api.meet-lines.com", "/health", "", nil), http.StatusOK)

	down := newFixture(t, fakePinger{err: errors.New("connection refused")})
	wantStatus(t, down.do(http.MethodGet, "api.meet-lines.com", "/api/health", "", nil), http.StatusServiceUnavailable)
}

func TestUnknownTenantIs404(t *testing.T) {
	f := newFixture(t, nil)
	w := f.do(http.MethodGet, "ghost.meet-lines.com", "/api/availability?date=2026-10-19", "", nil)

	wantStatus(t, w, http.StatusNotFound)
	if w.Body.String() != "Tenant not found" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, nil)

	register := map[string]string{
		"email":        "new@owner.test",
		"password":     "supersecret",
		"display_name": "New Owner",
		"project_name": "Barber Bros",
		"subdomain":    "Barber-Bros",
	}
	w := f.do(http.MethodPost, "meet-lines.com", "/api/auth/register", "", register)
	wantStatus(t, w, http.StatusCreated)
	resp := decode[authResponse](t, w)
	if resp.Project == nil || resp.Project.Subdomain != "barber-bros" {
		t.Fatalf("project = %+v, want normalized subdomain", resp.Project)
	}
	claims, err := auth.ParseToken(resp.Token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Role != auth.RoleOwner || claims.ProjectID != resp.Project.ID {
		t.Errorf("claims = %+v", claims)
	}

	// Same email again.
	register["subdomain"] = "another-one"
	wantErrorCode(t, f.do(http.MethodPost, "meet-lines.com", "/api/auth/register", "", register), http.StatusConflict, appointment.CodeConflict)

	// Reserved subdomain.
	register["email"] = "third@owner.test"
	register["subdomain"] = "admin"
	wantErrorCode(t, f.do(http.MethodPost, "meet-lines.com", "/api/auth/register", "", register), http.StatusBadRequest, appointment.CodeValidation)

	// Taken subdomain.
	register["subdomain"] = "acme"
	wantErrorCode(t, f.do(http.MethodPost, "meet-lines.com", "/api/auth/register", "", register), http.StatusConflict, appointment.CodeConflict)

	login := map[string]string{"email": "new@owner.test", "password": "wrong-password"}
	wantStatus(t, f.do(http.MethodPost, "meet-lines.com", "/api/auth/login", "", login), http.StatusUnauthorized)

	login["password"] = "supersecret"
	w = f.do(http.MethodPost, "meet-lines.com", "/api/auth/login", "", login)
	wantStatus(t, w, http.StatusOK)
	if got := decode[authResponse](t, w); len(got.Projects) != 1 || got.Token == "" {
		t.Errorf("login response = %+v", got)
	}
}

func TestSubdomainCheck(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name      string
		available bool
	}{
		{"acme", false},
		{"www", false},
		{"x", false},
		{"fresh-cuts", true},
	}
	for _, tt := range tests {
		w := f.do(http.MethodGet, "meet-lines.com", "/api/projects/public/subdomain-check?name="+tt.name, "", nil)
		wantStatus(t, w, http.StatusOK)
		if got := decode[map[string]any](t, w)["available"]; got != tt.available {
			t.Errorf("%s: available = %v, want %v", tt.name, got, tt.available)
		}
	}
}

func TestAvailability(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, tenantHost, "/api/availability?date=2026-10-19&serviceId="+f.service.ID.String(), "", nil)
	wantStatus(t, w, http.StatusOK)
	day := decode[availability.DaySlots](t, w)
	if day.Date != "2026-10-19" || len(day.Slots) != 3 {
		t.Fatalf("day = %+v, want 3 slots on 2026-10-19", day)
	}
	for i, want := range []string{"09:00", "10:00", "11:00"} {
		if day.Slots[i].Time != want || day.Slots[i].EmployeeID != f.employee.ID {
			t.Errorf("slot %d = %+v, want %s with Ana", i, day.Slots[i], want)
		}
	}

	wantErrorCode(t, f.do(http.MethodGet, tenantHost, "/api/availability?date=19-10-2026", "", nil), http.StatusBadRequest, appointment.CodeValidation)
	wantErrorCode(t, f.do(http.MethodGet, tenantHost, "/api/availability?date=2026-10-19&service_id="+uuid.NewString(), "", nil), http.StatusNotFound, appointment.CodeNotFound)

	// No tenant in the host and no token to fall back on.
	wantErrorCode(t, f.do(http.MethodGet, "meet-lines.com", "/api/availability?date=2026-10-19", "", nil), http.StatusBadRequest, appointment.CodeValidation)
}

func TestAppointmentFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	sub, err := f.bus.Subscribe(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	tenAM := time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)
	body := map[string]any{"service_id": f.service.ID, "starts_at": tenAM}

	w := f.do(http.MethodPost, tenantHost, "/api/appointments", f.customerToken(), body)
	wantStatus(t, w, http.StatusCreated)
	created := decode[models.Appointment](t, w)
	if created.Status != models.StatusPending || created.EmployeeID == nil || *created.EmployeeID != f.employee.ID {
		t.Fatalf("created = %+v", created)
	}
	if !created.Price.Equal(decimal.RequireFromString("30")) {
		t.Errorf("price = %s, want 30", created.Price)
	}
	select {
	case <-sub.Messages():
	default:
		t.Error("no event published for the new appointment")
	}

	// The only employee is now busy at ten.
	wantErrorCode(t, f.do(http.MethodPost, tenantHost, "/api/appointments", f.customerToken(), body), http.StatusConflict, appointment.CodeSlotTaken)

	w = f.do(http.MethodGet, tenantHost, "/api/availability?date=2026-10-19", "", nil)
	if day := decode[availability.DaySlots](t, w); len(day.Slots) != 2 {
		t.Errorf("slots after booking = %d, want 2", len(day.Slots))
	}

	path := "/api/appointments/" + created.ID.String()

	// Customers may read their own appointment but not list or confirm.
	wantStatus(t, f.do(http.MethodGet, tenantHost, path, f.customerToken(), nil), http.StatusOK)
	wantStatus(t, f.do(http.MethodGet, tenantHost, "/api/appointments", f.customerToken(), nil), http.StatusForbidden)
	wantStatus(t, f.do(http.MethodPost, tenantHost, path+"/confirm", f.customerToken(), nil), http.StatusForbidden)

	// 22 hours of notice is not enough for a customer.
	wantErrorCode(t, f.do(http.MethodPost, tenantHost, path+"/cancel", f.customerToken(), nil), http.StatusBadRequest, appointment.CodeLeadTime)

	w = f.do(http.MethodPost, tenantHost, path+"/confirm", f.ownerToken(), nil)
	wantStatus(t, w, http.StatusOK)
	if got := decode[models.Appointment](t, w); got.Status != models.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", got.Status)
	}

	w = f.do(http.MethodGet, tenantHost, "/api/appointments?status=confirmed&from=2026-10-19", f.ownerToken(), nil)
	wantStatus(t, w, http.StatusOK)
	if list := decode[[]models.Appointment](t, w); len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}
	wantErrorCode(t, f.do(http.MethodGet, tenantHost, "/api/appointments?status=lost", f.ownerToken(), nil), http.StatusBadRequest, appointment.CodeValidation)

	// Staff are not bound by the notice rule.
	w = f.do(http.MethodPost, tenantHost, path+"/cancel", f.ownerToken(), `{"reason":"closed for repairs"}`)
	wantStatus(t, w, http.StatusOK)
	cancelled := decode[models.Appointment](t, w)
	if cancelled.Status != models.StatusCancelled || cancelled.CancellationReason != "closed for repairs" {
		t.Fatalf("cancelled = %+v", cancelled)
	}

	wantErrorCode(t, f.do(http.MethodPost, tenantHost, path+"/complete", f.ownerToken(), nil), http.StatusBadRequest, appointment.CodeTerminalState)
	wantErrorCode(t, f.do(http.MethodPost, tenantHost, "/api/appointments/"+uuid.NewString()+"/confirm", f.ownerToken(), nil), http.StatusNotFound, appointment.CodeNotFound)
	wantErrorCode(t, f.do(http.MethodPost, tenantHost, "/api/appointments/not-a-uuid/confirm", f.ownerToken(), nil), http.StatusBadRequest, appointment.CodeValidation)
}

func TestCustomerCannotBookOutsideHours(t *testing.T) {
	f := newFixture(t, nil)
	body := map[string]any{
		"service_id": f.service.ID,
		"starts_at":  time.Date(2026, time.October, 19, 17, 0, 0, 0, time.UTC),
	}
	wantErrorCode(t, f.do(http.MethodPost, tenantHost, "/api/appointments", f.customerToken(), body), http.StatusBadRequest, appointment.CodeValidation)

	// Staff may book a walk-in after hours.
	body["customer"] = map[string]string{"name": "Walk In", "phone": "+15550001"}
	wantStatus(t, f.do(http.MethodPost, tenantHost, "/api/appointments", f.ownerToken(), body), http.StatusCreated)
}

func TestTokenForAnotherTenantIsForbidden(t *testing.T) {
	f := newFixture(t, nil)
	other, err := f.store.Projects.Create(context.Background(), &models.Project{OwnerID: f.owner.ID, Name: "Other", Subdomain: "other"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	tok, err := auth.GenerateToken(f.owner.ID, other.ID, "", auth.RoleOwner, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	wantStatus(t, f.do(http.MethodGet, tenantHost, "/api/services", tok, nil), http.StatusForbidden)
	wantStatus(t, f.do(http.MethodGet, "other.meet-lines.com", "/api/services", tok, nil), http.StatusOK)
}

func TestOwnerOnlyRoutes(t *testing.T) {
	f := newFixture(t, nil)
	staff := f.token(uuid.New(), auth.RoleStaff)

	wantStatus(t, f.do(http.MethodPost, tenantHost, "/api/employees", staff, map[string]string{"name": "Bo"}), http.StatusForbidden)
	wantStatus(t, f.do(http.MethodGet, tenantHost, "/api/bot-config", staff, nil), http.StatusForbidden)
	wantStatus(t, f.do(http.MethodGet, tenantHost, "/api/appointments", staff, nil), http.StatusOK)

	w := f.do(http.MethodPost, tenantHost, "/api/employees", f.ownerToken(), map[string]string{"name": "Bo"})
	wantStatus(t, w, http.StatusCreated)
	bo := decode[models.Employee](t, w)

	w = f.do(http.MethodPatch, tenantHost, "/api/employees/"+bo.ID.String()+"/active", f.ownerToken(), map[string]bool{"active": false})
	wantStatus(t, w, http.StatusOK)
	if decode[models.Employee](t, w).Active {
		t.Error("employee should be inactive")
	}
	wantErrorCode(t, f.do(http.MethodPatch, tenantHost, "/api/employees/"+bo.ID.String()+"/active", f.ownerToken(), `{}`), http.StatusBadRequest, appointment.CodeValidation)
}

func TestServiceCreate(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodPost, tenantHost, "/api/services", f.ownerToken(), `{"name":"Beard","duration_minutes":30,"price":"12.499","currency":"usd"}`)
	wantStatus(t, w, http.StatusCreated)
	svc := decode[models.Service](t, w)
	if svc.Currency != "USD" || !svc.Price.Equal(decimal.RequireFromString("12.50")) {
		t.Errorf("service = %+v", svc)
	}

	wantErrorCode(t, f.do(http.MethodPost, tenantHost, "/api/services", f.ownerToken(), `{"name":"Beard","duration_minutes":30,"price":"-1","currency":"USD"}`), http.StatusBadRequest, appointment.CodeValidation)
	wantErrorCode(t, f.do(http.MethodPost, tenantHost, "/api/services", f.ownerToken(), `{"name":"Beard","duration_minutes":0,"currency":"USD"}`), http.StatusBadRequest, appointment.CodeValidation)
}

func TestBotConfig(t *testing.T) {
	f := newFixture(t, nil)

	bad := `{"transactional":{"appointmentsEnabled":true,"timezone":"Nowhere/Land"}}`
	wantErrorCode(t, f.do(http.MethodPut, tenantHost, "/api/bot-config", f.ownerToken(), bad), http.StatusBadRequest, appointment.CodeValidation)

	good := `{"transactional":{"appointmentsEnabled":false,"businessHours":{"Friday":{"open":"10:00","close":"14:00"}}}}`
	wantStatus(t, f.do(http.MethodPut, tenantHost, "/api/bot-config", f.ownerToken(), good), http.StatusOK)

	w := f.do(http.MethodGet, tenantHost, "/api/bot-config", f.ownerToken(), nil)
	wantStatus(t, w, http.StatusOK)
	body := decode[map[string]map[string]any](t, w)
	hours, _ := body["transactional"]["businessHours"].(map[string]any)
	if _, ok := hours["friday"]; !ok {
		t.Errorf("business hours = %v, want normalized day key", hours)
	}

	// Booking is now disabled, so the widget sees no slots.
	w = f.do(http.MethodGet, tenantHost, "/api/availability?date=2026-10-19", "", nil)
	if day := decode[availability.DaySlots](t, w); len(day.Slots) != 0 {
		t.Errorf("slots = %d, want 0 with booking disabled", len(day.Slots))
	}
}

func TestPublicProject(t *testing.T) {
	f := newFixture(t, nil)

	w := f.do(http.MethodGet, "meet-lines.com", "/api/projects/public/acme", "", nil)
	wantStatus(t, w, http.StatusOK)
	if got := decode[publicProject](t, w); got.ID != f.project.ID {
		t.Errorf("project = %+v", got)
	}

	if _, err := f.store.Projects.UpdateStatus(context.Background(), f.project.ID, models.ProjectDisabled); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	wantStatus(t, f.do(http.MethodGet, "meet-lines.com", "/api/projects/public/acme", "", nil), http.StatusNotFound)
	wantStatus(t, f.do(http.MethodGet, tenantHost, "/api/services", f.ownerToken(), nil), http.StatusNotFound)
}
