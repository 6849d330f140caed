package tenant

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store implementations and by Resolver.Resolve
// when no organization matches the queried host.
var ErrNotFound = errors.New("tenant: not found")

// ErrReservedSubdomain marks a terminal rejection of a reserved subdomain.
// It is never cached and never retried.
var ErrReservedSubdomain = errors.New("tenant: reserved subdomain")

// CustomDomain is a customer-configured domain record. A domain routes
// traffic only once verification and TLS provisioning have both completed.
type CustomDomain struct {
	OrgID              string
	Domain             string
	VerificationActive bool
	TLSActive          bool
}

// Routable reports whether the domain may receive traffic.
func (d CustomDomain) Routable() bool {
	return d.VerificationActive && d.TLSActive
}

// Store is the read-only lookup surface backed by the relational store.
// Implementations return ErrNotFound (possibly wrapped) for absent rows and
// any other error for infrastructure failures.
type Store interface {
	// OrgByGeneratedSubdomain resolves an auto-generated subdomain
	// (e.g. "swift-cloud-742") to an organization id.
	OrgByGeneratedSubdomain(ctx context.Context, subdomain string) (string, error)
	// OrgByCustomSubdomain resolves a customer-chosen subdomain to an
	// organization id.
	OrgByCustomSubdomain(ctx context.Context, subdomain string) (string, error)
	// CustomDomainByHost resolves a full hostname to its custom-domain
	// record, including provisioning state.
	CustomDomainByHost(ctx context.Context, host string) (CustomDomain, error)
}
