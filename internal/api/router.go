package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meetlines/meetlines/internal/appointment"
	"github.com/meetlines/meetlines/internal/auth"
	"github.com/meetlines/meetlines/internal/availability"
	"github.com/meetlines/meetlines/internal/events"
	"github.com/meetlines/meetlines/internal/middleware"
	"github.com/meetlines/meetlines/internal/observ"
	"github.com/meetlines/meetlines/internal/repository"
	"github.com/meetlines/meetlines/internal/tenancy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps is everything the HTTP layer needs. Metrics and Gatherer may be nil,
// which disables request metrics and the /metrics endpoint.
type Deps struct {
	Users        repository.UserRepository
	Projects     repository.ProjectRepository
	Employees    repository.EmployeeRepository
	Services     repository.ServiceRepository
	BotConfigs   repository.BotConfigRepository
	Appointments repository.AppointmentRepository

	Resolver   *tenancy.Resolver
	Engine     *availability.Engine
	Lifecycle  *appointment.Service
	Subscriber events.Subscriber
	DB         Pinger

	JWTSecret      string
	TokenTTL       time.Duration
	BaseDomain     string
	AllowedOrigins []string

	Metrics  *observ.Metrics
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter wires middleware and routes.
//
// Middleware order matters: CORS answers preflights before anything else,
// the tenant is resolved before auth so a token can be checked against it,
// and RequireTenant runs after auth so a project claim can stand in for a
// missing tenant host.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Logger))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}

	var recorder middleware.TenantRecorder
	if d.Metrics != nil {
		recorder = d.Metrics
	}
	r.Use(
		middleware.CORS(d.AllowedOrigins, d.BaseDomain),
		middleware.TenantMiddleware(d.Resolver, recorder, d.Logger),
	)

	health := NewHealthHandler(d.DB, d.Logger)
	r.GET("/health", health.Get)
	r.GET("/api/health", health.Get)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authH := NewAuthHandler(d.Users, d.Projects, d.JWTSecret, d.TokenTTL, d.Logger)
	userH := NewUserHandler(d.Users, d.Projects, d.Logger)
	projectH := NewProjectHandler(d.Projects, d.JWTSecret, d.TokenTTL, d.Logger)
	employeeH := NewEmployeeHandler(d.Employees, d.Logger)
	serviceH := NewServiceHandler(d.Services, d.Logger)
	botConfigH := NewBotConfigHandler(d.BotConfigs, d.Logger)
	availabilityH := NewAvailabilityHandler(d.Engine, d.Logger)
	appointmentH := NewAppointmentHandler(d.Lifecycle, d.Appointments, d.Logger)

	allowOrigin := middleware.OriginPolicy(d.AllowedOrigins, d.BaseDomain)
	eventsH := NewEventsHandler(d.Subscriber, func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		return origin == "" || allowOrigin(origin)
	}, d.Logger)

	api := r.Group("/api")

	// Public: no token, no tenant.
	api.POST("/auth/register", authH.Register)
	api.POST("/auth/login", authH.Login)
	api.GET("/projects/public/subdomain-check", projectH.CheckSubdomain)
	api.GET("/projects/public/:subdomain", projectH.GetPublic)

	// Tenant required, token optional: the public booking widget.
	api.GET("/availability", middleware.OptionalAuth(d.JWTSecret), middleware.RequireTenant(), availabilityH.Get)

	authed := api.Group("", middleware.AuthMiddleware(d.JWTSecret))

	owner := authed.Group("", middleware.RequireRole(auth.RoleOwner))
	owner.GET("/users/me", userH.GetMe)
	owner.POST("/projects", projectH.Create)
	owner.GET("/projects", projectH.List)
	owner.PATCH("/projects/:id/subdomain", projectH.UpdateSubdomain)
	owner.PATCH("/projects/:id/status", projectH.UpdateStatus)

	scoped := authed.Group("", middleware.RequireTenant())
	scoped.GET("/employees", employeeH.List)
	scoped.GET("/services", serviceH.List)
	scoped.POST("/appointments", appointmentH.Create)
	scoped.GET("/appointments/:id", appointmentH.Get)
	scoped.POST("/appointments/:id/cancel", appointmentH.Cancel)

	staff := scoped.Group("", middleware.RequireRole(auth.RoleOwner, auth.RoleStaff))
	staff.GET("/appointments", appointmentH.List)
	staff.POST("/appointments/:id/confirm", appointmentH.Confirm)
	staff.POST("/appointments/:id/complete", appointmentH.Complete)
	staff.POST("/appointments/:id/no-show", appointmentH.NoShow)

	ownerScoped := scoped.Group("", middleware.RequireRole(auth.RoleOwner))
	ownerScoped.POST("/employees", employeeH.Create)
	ownerScoped.PATCH("/employees/:id/active", employeeH.SetActive)
	ownerScoped.POST("/services", serviceH.Create)
	ownerScoped.PUT("/services/:id/employees", serviceH.SetEmployees)
	ownerScoped.GET("/bot-config", botConfigH.Get)
	ownerScoped.PUT("/bot-config", botConfigH.Put)

	// Browsers cannot send headers on the WebSocket handshake, so the token
	// may come as ?access_token=.
	api.GET("/events/ws",
		middleware.TokenFromQuery("access_token"),
		middleware.AuthMiddleware(d.JWTSecret),
		middleware.RequireTenant(),
		middleware.RequireRole(auth.RoleOwner, auth.RoleStaff),
		eventsH.Stream,
	)

	return r
}
