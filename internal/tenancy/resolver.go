package tenancy

import (
	"context"
	"net"
	"net/url"
	"strings"

	"github.com/meetlines/meetlines/internal/models"
	"github.com/meetlines/meetlines/internal/subdomain"
)

// Kind is the result of resolving a request to a tenant.
type Kind int

const (
	// NoTenant lets the request continue anonymously.
	NoTenant Kind = iota
	// Resolved attaches a tenant to the request.
	Resolved
	// Rejected ends the request with 404: the host names a tenant that does
	// not exist or is disabled.
	Rejected
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "anonymous"
	}
}

// Reasons explaining an outcome, used for logs and metrics.
const (
	ReasonPublicPath       = "public_path"
	ReasonServicePath      = "service_path"
	ReasonForeignHost      = "foreign_host"
	ReasonBaseDomain       = "base_domain"
	ReasonInvalidSubdomain = "invalid_subdomain"
	ReasonNoOrigin         = "reserved_without_origin"
	ReasonLookupError      = "lookup_error"
	ReasonNotFound         = "not_found"
	ReasonInactive         = "inactive"
	ReasonHost             = "host"
	ReasonOrigin           = "origin"
)

// Outcome is the decision for one request.
type Outcome struct {
	Kind      Kind
	Tenant    Tenant
	Candidate string
	Reason    string
	Err       error
}

// Request carries the parts of an HTTP request the resolver looks at.
type Request struct {
	Host   string
	Path   string
	Origin string
}

// ProjectLookup finds a project by subdomain. It returns nil, nil when no
// project matches.
type ProjectLookup interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Project, error)
}

// Options configures a Resolver. Hosts under BaseDomain whose first label is
// in ReservedSubdomains never resolve to a tenant.
type Options struct {
	BaseDomain           string
	ReservedSubdomains   []string
	PublicPathPrefixes   []string
	ServicePathKeywords  []string
	TrustedOriginSchemes []string
}

// Resolver maps request hosts to tenants. It holds no per-request state and
// is safe for concurrent use.
type Resolver struct {
	baseSuffix string
	baseDomain string
	technical  map[string]struct{}
	prefixes   []string
	keywords   map[string]struct{}
	schemes    map[string]struct{}
	lookup     ProjectLookup
}

// NewResolver builds a Resolver from opts, normalizing the base domain and
// path prefixes. lookup is consulted only for candidate subdomains.
func NewResolver(opts Options, lookup ProjectLookup) *Resolver {
	base := normalizeHost(opts.BaseDomain)
	r := &Resolver{
		baseDomain: base,
		baseSuffix: "." + base,
		technical:  toSet(opts.ReservedSubdomains),
		keywords:   toSet(opts.ServicePathKeywords),
		schemes:    toSet(opts.TrustedOriginSchemes),
		lookup:     lookup,
	}
	for _, p := range opts.PublicPathPrefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			r.prefixes = append(r.prefixes, p)
		}
	}
	return r
}

// Resolve decides the tenant of req. It never fails: infrastructure errors
// while looking up the project degrade to NoTenant with Err set.
func (r *Resolver) Resolve(ctx context.Context, req Request) Outcome {
	path := strings.ToLower(req.Path)

	if r.isPublicPath(path) {
		return Outcome{Kind: NoTenant, Reason: ReasonPublicPath}
	}
	if r.isServicePath(path) {
		return Outcome{Kind: NoTenant, Reason: ReasonServicePath}
	}

	candidate, reason := r.subdomainOf(req.Host)
	if candidate == "" {
		return Outcome{Kind: NoTenant, Reason: reason}
	}

	source := ReasonHost
	if r.isTechnical(candidate) {
		candidate = r.originCandidate(req.Origin)
		if candidate == "" {
			return Outcome{Kind: NoTenant, Reason: ReasonNoOrigin}
		}
		source = ReasonOrigin
	} else if ok, _ := subdomain.IsValid(candidate); !ok {
		return Outcome{Kind: NoTenant, Candidate: candidate, Reason: ReasonInvalidSubdomain}
	}

	project, err := r.lookup.GetBySubdomain(ctx, candidate)
	if err != nil {
		return Outcome{Kind: NoTenant, Candidate: candidate, Reason: ReasonLookupError, Err: err}
	}
	if project == nil {
		return Outcome{Kind: Rejected, Candidate: candidate, Reason: ReasonNotFound}
	}
	if !project.IsActive() {
		return Outcome{Kind: Rejected, Candidate: candidate, Reason: ReasonInactive}
	}

	return Outcome{
		Kind:      Resolved,
		Tenant:    Tenant{ID: project.ID, Subdomain: project.Subdomain},
		Candidate: candidate,
		Reason:    source,
	}
}

func (r *Resolver) isPublicPath(path string) bool {
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (r *Resolver) isServicePath(path string) bool {
	first, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "" {
		return false
	}
	_, ok := r.keywords[first]
	return ok
}

func (r *Resolver) isTechnical(candidate string) bool {
	_, ok := r.technical[candidate]
	return ok
}

// subdomainOf returns the labels in front of the base domain, or "" with a
// reason when host is not a tenant host.
func (r *Resolver) subdomainOf(host string) (string, string) {
	host = normalizeHost(host)
	if host == r.baseDomain {
		return "", ReasonBaseDomain
	}
	if !strings.HasSuffix(host, r.baseSuffix) {
		return "", ReasonForeignHost
	}
	return strings.TrimSuffix(host, r.baseSuffix), ""
}

// originCandidate derives the tenant subdomain from an Origin header sent to
// a technical host. Only origins on the base domain with a trusted scheme
// count, and the origin itself must not be a technical host.
func (r *Resolver) originCandidate(origin string) string {
	if origin == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}
	if len(r.schemes) > 0 {
		if _, ok := r.schemes[strings.ToLower(u.Scheme)]; !ok {
			return ""
		}
	}
	candidate, _ := r.subdomainOf(u.Host)
	if candidate == "" || r.isTechnical(candidate) {
		return ""
	}
	if ok, _ := subdomain.IsValid(candidate); !ok {
		return ""
	}
	return candidate
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(host, ".")
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			set[item] = struct{}{}
		}
	}
	return set
}
