package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records how many lookups hit each method so tests can assert
// cache behavior.
type countingStore struct {
	generated map[string]string
	custom    map[string]string
	domains   map[string]CustomDomain

	generatedCalls int
	customCalls    int
	domainCalls    int
	failWith       error
}

func (s *countingStore) OrgByGeneratedSubdomain(_ context.Context, sub string) (string, error) {
	s.generatedCalls++
	if s.failWith != nil {
		return "", s.failWith
	}
	if org, ok := s.generated[sub]; ok {
		return org, nil
	}
	return "", ErrNotFound
}

func (s *countingStore) OrgByCustomSubdomain(_ context.Context, sub string) (string, error) {
	s.customCalls++
	if s.failWith != nil {
		return "", s.failWith
	}
	if org, ok := s.custom[sub]; ok {
		return org, nil
	}
	return "", ErrNotFound
}

func (s *countingStore) CustomDomainByHost(_ context.Context, host string) (CustomDomain, error) {
	s.domainCalls++
	if s.failWith != nil {
		return CustomDomain{}, s.failWith
	}
	if d, ok := s.domains[host]; ok {
		return d, nil
	}
	return CustomDomain{}, ErrNotFound
}

func newTestResolver(t *testing.T, store *countingStore) *Resolver {
	t.Helper()
	r, err := NewResolver(store, ResolverOptions{BaseDomain: "plexmcp.com"})
	require.NoError(t, err)
	return r
}

func TestNormalizeHost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", NormalizeHost("Example.COM:8080"))
	assert.Equal(t, "example.com", NormalizeHost("example.com"))
	assert.Equal(t, "sub.example.com", NormalizeHost(" SUB.example.com "))
	assert.Equal(t, "", NormalizeHost(""))
}

func TestIsGeneratedSubdomainShape(t *testing.T) {
	t.Parallel()

	assert.True(t, IsGeneratedSubdomainShape("swift-cloud-742"))
	assert.False(t, IsGeneratedSubdomainShape("swift-cloud-74"))
	assert.False(t, IsGeneratedSubdomainShape("a-b-c-d-123"))
	assert.False(t, IsGeneratedSubdomainShape("swift-cloud-74a"))
	assert.False(t, IsGeneratedSubdomainShape("plain"))
	assert.False(t, IsGeneratedSubdomainShape("-cloud-742"))
}

func TestResolveBareAPIHostReturnsNoTenant(t *testing.T) {
	t.Parallel()

	store := &countingStore{}
	r := newTestResolver(t, store)

	for _, host := range []string{"plexmcp.com", "api.plexmcp.com", "API.plexmcp.com:443"} {
		tenant, err := r.Resolve(context.Background(), host)
		require.NoError(t, err, host)
		assert.Nil(t, tenant, host)
	}
	assert.Zero(t, store.generatedCalls+store.customCalls+store.domainCalls,
		"no-tenant hosts must not hit the store")
}

func TestResolveReservedSubdomainIsTerminal(t *testing.T) {
	t.Parallel()

	store := &countingStore{}
	r := newTestResolver(t, store)

	_, err := r.Resolve(context.Background(), "admin.plexmcp.com")
	require.ErrorIs(t, err, ErrReservedSubdomain)
	assert.Zero(t, store.generatedCalls+store.customCalls, "reserved words reject before any lookup")

	// Never cached: a second resolution rejects again without consulting the cache.
	_, err = r.Resolve(context.Background(), "admin.plexmcp.com")
	require.ErrorIs(t, err, ErrReservedSubdomain)
	assert.Zero(t, r.Cache().Len())
}

func TestResolveGeneratedSubdomain(t *testing.T) {
	t.Parallel()

	store := &countingStore{generated: map[string]string{"swift-cloud-742": "org-1"}}
	r := newTestResolver(t, store)

	tenant, err := r.Resolve(context.Background(), "Swift-Cloud-742.plexmcp.com:8443")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, "org-1", tenant.OrgID)
	assert.Equal(t, KindAutoSubdomain, tenant.Kind)

	// Cached: second resolve performs no lookup.
	_, err = r.Resolve(context.Background(), "swift-cloud-742.plexmcp.com")
	require.NoError(t, err)
	assert.Equal(t, 1, store.generatedCalls)
}

func TestGeneratedShapeFallsBackToCustomSubdomain(t *testing.T) {
	t.Parallel()

	// Shape matches but only the custom-subdomain table knows it.
	store := &countingStore{custom: map[string]string{"acme-corp-001": "org-9"}}
	r := newTestResolver(t, store)

	tenant, err := r.Resolve(context.Background(), "acme-corp-001.plexmcp.com")
	require.NoError(t, err)
	assert.Equal(t, "org-9", tenant.OrgID)
	assert.Equal(t, KindCustomSubdomain, tenant.Kind)
	assert.Equal(t, 1, store.generatedCalls, "generated lookup is tried first")
	assert.Equal(t, 1, store.customCalls)
}

func TestResolveUnknownSubdomainCachesNegative(t *testing.T) {
	t.Parallel()

	store := &countingStore{}
	r := newTestResolver(t, store)

	_, err := r.Resolve(context.Background(), "nobody.plexmcp.com")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, 1, store.customCalls)

	_, err = r.Resolve(context.Background(), "nobody.plexmcp.com")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, store.customCalls, "second resolution must be served from the negative cache")
}

func TestResolveCustomDomainRequiresVerificationAndTLS(t *testing.T) {
	t.Parallel()

	store := &countingStore{domains: map[string]CustomDomain{
		"mcp.acme.io":     {OrgID: "org-2", VerificationActive: true, TLSActive: true},
		"pending.acme.io": {OrgID: "org-3", VerificationActive: true, TLSActive: false},
	}}
	r := newTestResolver(t, store)

	tenant, err := r.Resolve(context.Background(), "mcp.acme.io")
	require.NoError(t, err)
	assert.Equal(t, "org-2", tenant.OrgID)
	assert.Equal(t, KindCustomDomain, tenant.Kind)

	_, err = r.Resolve(context.Background(), "pending.acme.io")
	require.ErrorIs(t, err, ErrNotFound, "a provisioning domain must not route traffic")
}

func TestStoreFailureIsNotCached(t *testing.T) {
	t.Parallel()

	store := &countingStore{failWith: errors.New("connection refused")}
	r := newTestResolver(t, store)

	_, err := r.Resolve(context.Background(), "some-org.plexmcp.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	store.failWith = nil
	store.custom = map[string]string{"some-org": "org-4"}
	tenant, err := r.Resolve(context.Background(), "some-org.plexmcp.com")
	require.NoError(t, err, "a transient store failure must not poison the cache")
	assert.Equal(t, "org-4", tenant.OrgID)
}

func TestInvalidation(t *testing.T) {
	t.Parallel()

	store := &countingStore{custom: map[string]string{"acme": "org-5", "acme2": "org-5"}}
	r := newTestResolver(t, store)

	_, err := r.Resolve(context.Background(), "acme.plexmcp.com")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "acme2.plexmcp.com")
	require.NoError(t, err)
	require.Equal(t, 2, store.customCalls)

	r.Cache().InvalidateOrg("org-5")
	_, err = r.Resolve(context.Background(), "acme.plexmcp.com")
	require.NoError(t, err)
	assert.Equal(t, 3, store.customCalls, "org invalidation must evict positive entries")

	r.Cache().Invalidate("acme2.plexmcp.com")
	_, err = r.Resolve(context.Background(), "acme2.plexmcp.com")
	require.NoError(t, err)
	assert.Equal(t, 4, store.customCalls)
}
