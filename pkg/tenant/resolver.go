package tenant

import (
	"context"
	"log/slog"
	"net"
	"strings"

	"github.com/cockroachdb/errors"
)

// ResolutionKind records which addressing scheme matched a host.
type ResolutionKind int

const (
	// KindAutoSubdomain is a generated "{adjective}-{noun}-{digits}" subdomain.
	KindAutoSubdomain ResolutionKind = iota
	// KindCustomSubdomain is a customer-chosen subdomain of the base domain.
	KindCustomSubdomain
	// KindCustomDomain is a fully customer-owned domain.
	KindCustomDomain
)

func (k ResolutionKind) String() string {
	switch k {
	case KindAutoSubdomain:
		return "auto_subdomain"
	case KindCustomSubdomain:
		return "custom_subdomain"
	case KindCustomDomain:
		return "custom_domain"
	default:
		return "unknown"
	}
}

// Tenant is a resolved organization.
type Tenant struct {
	OrgID string
	Kind  ResolutionKind
}

// defaultReservedSubdomains are never resolvable as tenants regardless of
// what the datastore contains.
var defaultReservedSubdomains = []string{
	"api", "www", "admin", "mail", "app", "dashboard", "console", "portal",
	"docs", "help", "support", "status", "blog", "cdn", "static", "assets",
	"media", "images", "staging", "dev", "test", "demo",
}

// ResolverOptions configure a Resolver.
type ResolverOptions struct {
	// BaseDomain is the gateway's own domain, e.g. "plexmcp.com".
	BaseDomain string
	// ReservedSubdomains overrides the default reserved-word list when
	// non-empty.
	ReservedSubdomains []string
	// CacheSize bounds the domain cache; 0 selects DefaultCacheSize.
	CacheSize int
	// Logger receives resolution diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Resolver maps an inbound host header to a tenant.
type Resolver struct {
	store      Store
	cache      *DomainCache
	baseDomain string
	apiDomain  string
	reserved   map[string]struct{}
	logger     *slog.Logger
}

// NewResolver builds a Resolver over the given store.
func NewResolver(store Store, opts ResolverOptions) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("tenant: store is required")
	}
	if opts.BaseDomain == "" {
		return nil, errors.New("tenant: base domain is required")
	}
	cache, err := NewDomainCache(opts.CacheSize)
	if err != nil {
		return nil, err
	}
	words := opts.ReservedSubdomains
	if len(words) == 0 {
		words = defaultReservedSubdomains
	}
	reserved := make(map[string]struct{}, len(words))
	for _, w := range words {
		reserved[strings.ToLower(w)] = struct{}{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.ToLower(opts.BaseDomain)
	return &Resolver{
		store:      store,
		cache:      cache,
		baseDomain: base,
		apiDomain:  "api." + base,
		reserved:   reserved,
		logger:     logger,
	}, nil
}

// Cache exposes the underlying domain cache so collaborating components can
// invalidate entries when they mutate domain configuration.
func (r *Resolver) Cache() *DomainCache { return r.cache }

// Resolve maps host to a tenant. It returns (nil, nil) for the bare base
// domain and its "api." subdomain (legacy API-key-only mode),
// ErrReservedSubdomain for reserved words, and ErrNotFound when no
// organization matches. Positive and confirmed-negative outcomes are cached;
// reserved-word rejections and datastore failures are not.
func (r *Resolver) Resolve(ctx context.Context, host string) (*Tenant, error) {
	host = NormalizeHost(host)
	if host == "" {
		return nil, errors.WithStack(ErrNotFound)
	}

	if host == r.baseDomain || host == r.apiDomain {
		return nil, nil
	}

	if entry, ok := r.cache.Get(host); ok {
		if !entry.Found {
			return nil, errors.Wrapf(ErrNotFound, "host %s (cached)", host)
		}
		return &Tenant{OrgID: entry.OrgID, Kind: entry.Kind}, nil
	}

	if sub, ok := strings.CutSuffix(host, "."+r.baseDomain); ok {
		return r.resolveSubdomain(ctx, host, sub)
	}
	return r.resolveCustomDomain(ctx, host)
}

func (r *Resolver) resolveSubdomain(ctx context.Context, host, sub string) (*Tenant, error) {
	if _, reserved := r.reserved[sub]; reserved {
		return nil, errors.Wrapf(ErrReservedSubdomain, "subdomain %s", sub)
	}

	if IsGeneratedSubdomainShape(sub) {
		orgID, err := r.store.OrgByGeneratedSubdomain(ctx, sub)
		switch {
		case err == nil:
			r.cache.Put(host, orgID, KindAutoSubdomain)
			return &Tenant{OrgID: orgID, Kind: KindAutoSubdomain}, nil
		case !errors.Is(err, ErrNotFound):
			return nil, errors.Wrapf(err, "generated subdomain lookup for %s", sub)
		}
	}

	orgID, err := r.store.OrgByCustomSubdomain(ctx, sub)
	switch {
	case err == nil:
		r.cache.Put(host, orgID, KindCustomSubdomain)
		return &Tenant{OrgID: orgID, Kind: KindCustomSubdomain}, nil
	case errors.Is(err, ErrNotFound):
		r.cache.PutNegative(host)
		return nil, errors.Wrapf(ErrNotFound, "subdomain %s", sub)
	default:
		return nil, errors.Wrapf(err, "custom subdomain lookup for %s", sub)
	}
}

func (r *Resolver) resolveCustomDomain(ctx context.Context, host string) (*Tenant, error) {
	domain, err := r.store.CustomDomainByHost(ctx, host)
	switch {
	case errors.Is(err, ErrNotFound):
		r.cache.PutNegative(host)
		return nil, errors.Wrapf(ErrNotFound, "custom domain %s", host)
	case err != nil:
		return nil, errors.Wrapf(err, "custom domain lookup for %s", host)
	}
	if !domain.Routable() {
		// Still provisioning. The negative entry is safe to cache because
		// activation flows call InvalidateOrg.
		r.logger.Info("custom domain not routable",
			"host", host, "verified", domain.VerificationActive, "tls", domain.TLSActive)
		r.cache.PutNegative(host)
		return nil, errors.Wrapf(ErrNotFound, "custom domain %s not active", host)
	}
	r.cache.Put(host, domain.OrgID, KindCustomDomain)
	return &Tenant{OrgID: domain.OrgID, Kind: KindCustomDomain}, nil
}

// NormalizeHost strips any port and lowercases the hostname.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

// IsGeneratedSubdomainShape reports whether sub looks like an auto-generated
// subdomain: exactly three hyphen-separated segments with a final segment of
// exactly three digits.
func IsGeneratedSubdomainShape(sub string) bool {
	parts := strings.Split(sub, "-")
	if len(parts) != 3 {
		return false
	}
	last := parts[2]
	if len(last) != 3 {
		return false
	}
	for _, c := range last {
		if c < '0' || c > '9' {
			return false
		}
	}
	return parts[0] != "" && parts[1] != ""
}
