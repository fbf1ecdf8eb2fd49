// Package memory is an in-process implementation of the repository
// interfaces. It enforces the same uniqueness and overlap rules as the
// Postgres schema and backs the unit tests of the HTTP and booking layers.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/availability"
	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/repository"
)

type state struct {
	mu           sync.Mutex
	now          func() time.Time
	projects     map[uuid.UUID]models.Project
	users        map[uuid.UUID]models.User
	employees    map[uuid.UUID]models.Employee
	services     map[uuid.UUID]models.Service
	links        map[uuid.UUID]map[uuid.UUID]bool
	customers    map[uuid.UUID]models.Customer
	botConfigs   map[uuid.UUID]models.BotConfigRecord
	appointments map[uuid.UUID]models.Appointment
}

// Store groups one repository per entity over shared state.
type Store struct {
	Projects     *ProjectStore
	Users        *UserStore
	Employees    *EmployeeStore
	Services     *ServiceStore
	Customers    *CustomerStore
	BotConfigs   *BotConfigStore
	Appointments *AppointmentStore
}

func New() *Store {
	s := &state{
		now:          time.Now,
		projects:     make(map[uuid.UUID]models.Project),
		users:        make(map[uuid.UUID]models.User),
		employees:    make(map[uuid.UUID]models.Employee),
		services:     make(map[uuid.UUID]models.Service),
		links:        make(map[uuid.UUID]map[uuid.UUID]bool),
		customers:    make(map[uuid.UUID]models.Customer),
		botConfigs:   make(map[uuid.UUID]models.BotConfigRecord),
		appointments: make(map[uuid.UUID]models.Appointment),
	}
	return &Store{
		Projects:     &ProjectStore{s},
		Users:        &UserStore{s},
		Employees:    &EmployeeStore{s},
		Services:     &ServiceStore{s},
		Customers:    &CustomerStore{s},
		BotConfigs:   &BotConfigStore{s},
		Appointments: &AppointmentStore{s},
	}
}

var (
	_ repository.ProjectRepository     = (*ProjectStore)(nil)
	_ repository.UserRepository        = (*UserStore)(nil)
	_ repository.EmployeeRepository    = (*EmployeeStore)(nil)
	_ repository.ServiceRepository     = (*ServiceStore)(nil)
	_ repository.CustomerRepository    = (*CustomerStore)(nil)
	_ repository.BotConfigRepository   = (*BotConfigStore)(nil)
	_ repository.AppointmentRepository = (*AppointmentStore)(nil)
)

type ProjectStore struct{ s *state }

func (r *ProjectStore) Create(ctx context.Context, p *models.Project) (*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.projects {
		if existing.Subdomain == p.Subdomain {
			return nil, repository.ErrSubdomainTaken
		}
	}
	out := *p
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.Status == "" {
		out.Status = models.ProjectActive
	}
	out.CreatedAt = r.s.now()
	out.UpdatedAt = out.CreatedAt
	r.s.projects[out.ID] = out
	return &out, nil
}

func (r *ProjectStore) GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[projectID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *ProjectStore) GetBySubdomain(ctx context.Context, subdomain string) (*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.projects {
		if p.Subdomain == subdomain {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *ProjectStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Project, 0)
	for _, p := range r.s.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subdomain < out[j].Subdomain })
	return out, nil
}

func (r *ProjectStore) ListActive(ctx context.Context) ([]models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Project, 0)
	for _, p := range r.s.projects {
		if p.Status == models.ProjectActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subdomain < out[j].Subdomain })
	return out, nil
}

func (r *ProjectStore) UpdateSubdomain(ctx context.Context, projectID uuid.UUID, subdomain string) (*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[projectID]
	if !ok {
		return nil, nil
	}
	for id, existing := range r.s.projects {
		if id != projectID && existing.Subdomain == subdomain {
			return nil, repository.ErrSubdomainTaken
		}
	}
	p.Subdomain = subdomain
	p.UpdatedAt = r.s.now()
	r.s.projects[projectID] = p
	return &p, nil
}

func (r *ProjectStore) UpdateStatus(ctx context.Context, projectID uuid.UUID, status models.ProjectStatus) (*models.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[projectID]
	if !ok {
		return nil, nil
	}
	p.Status = status
	p.UpdatedAt = r.s.now()
	r.s.projects[projectID] = p
	return &p, nil
}

type UserStore struct{ s *state }

func (r *UserStore) Create(ctx context.Context, email, displayName, passwordHash string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return nil, repository.ErrEmailTaken
		}
	}
	u := models.User{
		ID:           uuid.New(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    r.s.now(),
	}
	r.s.users[u.ID] = u
	return &u, nil
}

func (r *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

type EmployeeStore struct{ s *state }

func (r *EmployeeStore) Create(ctx context.Context, e *models.Employee) (*models.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := *e
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	out.CreatedAt = r.s.now()
	r.s.employees[out.ID] = out
	return &out, nil
}

func (r *EmployeeStore) GetByID(ctx context.Context, projectID, employeeID uuid.UUID) (*models.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[employeeID]
	if !ok || e.ProjectID != projectID {
		return nil, nil
	}
	return &e, nil
}

func (r *EmployeeStore) List(ctx context.Context, projectID uuid.UUID) ([]models.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.employeesWhere(func(e models.Employee) bool { return e.ProjectID == projectID }), nil
}

func (r *EmployeeStore) ListActive(ctx context.Context, projectID uuid.UUID, serviceID *uuid.UUID) ([]models.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var linked map[uuid.UUID]bool
	if serviceID != nil {
		linked = r.s.links[*serviceID]
	}
	return r.s.employeesWhere(func(e models.Employee) bool {
		if e.ProjectID != projectID || !e.Active {
			return false
		}
		return len(linked) == 0 || linked[e.ID]
	}), nil
}

func (r *EmployeeStore) SetActive(ctx context.Context, projectID, employeeID uuid.UUID, active bool) (*models.Employee, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.employees[employeeID]
	if !ok || e.ProjectID != projectID {
		return nil, nil
	}
	e.Active = active
	r.s.employees[employeeID] = e
	return &e, nil
}

func (s *state) employeesWhere(keep func(models.Employee) bool) []models.Employee {
	out := make([]models.Employee, 0)
	for _, e := range s.employees {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type ServiceStore struct{ s *state }

func (r *ServiceStore) Create(ctx context.Context, svc *models.Service) (*models.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := *svc
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	out.CreatedAt = r.s.now()
	r.s.services[out.ID] = out
	return &out, nil
}

func (r *ServiceStore) GetByID(ctx context.Context, projectID, serviceID uuid.UUID) (*models.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.services[serviceID]
	if !ok || svc.ProjectID != projectID {
		return nil, nil
	}
	return &svc, nil
}

// Update replaces a stored service. Tests use it to change prices after a
// booking.
func (r *ServiceStore) Update(svc models.Service) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.services[svc.ID] = svc
}

func (r *ServiceStore) List(ctx context.Context, projectID uuid.UUID) ([]models.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Service, 0)
	for _, svc := range r.s.services {
		if svc.ProjectID == projectID {
			out = append(out, svc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *ServiceStore) SetEmployees(ctx context.Context, projectID, serviceID uuid.UUID, employeeIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	set := make(map[uuid.UUID]bool, len(employeeIDs))
	for _, id := range employeeIDs {
		if e, ok := r.s.employees[id]; ok && e.ProjectID == projectID {
			set[id] = true
		}
	}
	r.s.links[serviceID] = set
	return nil
}

type CustomerStore struct{ s *state }

func (r *CustomerStore) Upsert(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.customers {
		if existing.ProjectID != c.ProjectID {
			continue
		}
		if (c.Phone != "" && existing.Phone == c.Phone) || (c.Email != "" && strings.EqualFold(existing.Email, c.Email)) {
			return &existing, nil
		}
	}
	out := *c
	out.ID = uuid.New()
	out.CreatedAt = r.s.now()
	r.s.customers[out.ID] = out
	return &out, nil
}

func (r *CustomerStore) GetByID(ctx context.Context, projectID, customerID uuid.UUID) (*models.Customer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[customerID]
	if !ok || c.ProjectID != projectID {
		return nil, nil
	}
	return &c, nil
}

type BotConfigStore struct{ s *state }

func (r *BotConfigStore) Get(ctx context.Context, projectID uuid.UUID) (*models.BotConfigRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.botConfigs[projectID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *BotConfigStore) Upsert(ctx context.Context, projectID uuid.UUID, raw []byte) (*models.BotConfigRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec := models.BotConfigRecord{
		ProjectID: projectID,
		Raw:       append([]byte(nil), raw...),
		UpdatedAt: r.s.now(),
	}
	r.s.botConfigs[projectID] = rec
	return &rec, nil
}

type AppointmentStore struct{ s *state }

func (r *AppointmentStore) Create(ctx context.Context, a *models.Appointment) (*models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.EmployeeID != nil && a.Status.BlocksTime() {
		existing := make([]models.Appointment, 0, len(r.s.appointments))
		for _, other := range r.s.appointments {
			existing = append(existing, other)
		}
		if availability.Conflict(existing, *a.EmployeeID, a.StartsAt, a.EndsAt) != nil {
			return nil, repository.ErrSlotTaken
		}
	}
	out := *a
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	out.CreatedAt = r.s.now()
	out.UpdatedAt = out.CreatedAt
	r.s.appointments[out.ID] = out
	return &out, nil
}

// Put stores an appointment as-is, bypassing the overlap rule. Tests use it
// to seed history.
func (r *AppointmentStore) Put(a models.Appointment) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	r.s.appointments[a.ID] = a
}

func (r *AppointmentStore) GetByID(ctx context.Context, projectID, appointmentID uuid.UUID) (*models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[appointmentID]
	if !ok || a.ProjectID != projectID {
		return nil, nil
	}
	return &a, nil
}

func (r *AppointmentStore) List(ctx context.Context, projectID uuid.UUID, f repository.AppointmentFilter) ([]models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.appointmentsWhere(func(a models.Appointment) bool {
		switch {
		case a.ProjectID != projectID:
			return false
		case f.From != nil && !a.EndsAt.After(*f.From):
			return false
		case f.To != nil && !a.StartsAt.Before(*f.To):
			return false
		case f.EmployeeID != nil && (a.EmployeeID == nil || *a.EmployeeID != *f.EmployeeID):
			return false
		case f.Status != nil && a.Status != *f.Status:
			return false
		}
		return true
	}), nil
}

func (r *AppointmentStore) ListBlocking(ctx context.Context, projectID uuid.UUID, employeeID *uuid.UUID, from, to time.Time) ([]models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.appointmentsWhere(func(a models.Appointment) bool {
		if a.ProjectID != projectID || !a.Status.BlocksTime() {
			return false
		}
		if employeeID != nil && (a.EmployeeID == nil || *a.EmployeeID != *employeeID) {
			return false
		}
		return availability.Overlaps(a.StartsAt, a.EndsAt, from, to)
	}), nil
}

func (r *AppointmentStore) ListOpenStartedBefore(ctx context.Context, projectID uuid.UUID, cutoff time.Time) ([]models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.appointmentsWhere(func(a models.Appointment) bool {
		return a.ProjectID == projectID && !a.Status.IsTerminal() && a.StartsAt.Before(cutoff)
	}), nil
}

func (r *AppointmentStore) UpdateStatus(ctx context.Context, projectID, appointmentID uuid.UUID, change repository.StatusChange) (*models.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.appointments[appointmentID]
	if !ok || a.ProjectID != projectID {
		return nil, nil
	}
	if a.Status != change.From {
		return nil, repository.ErrStaleStatus
	}
	a.Status = change.To
	if change.To == models.StatusCancelled {
		a.CancellationReason = change.Reason
		a.CancelledBy = change.CancelledBy
	}
	a.UpdatedAt = r.s.now()
	r.s.appointments[appointmentID] = a
	return &a, nil
}

func (s *state) appointmentsWhere(keep func(models.Appointment) bool) []models.Appointment {
	out := make([]models.Appointment, 0)
	for _, a := range s.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}
