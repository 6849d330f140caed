package tenant

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the domain cache when no explicit size is given.
const DefaultCacheSize = 4096

// Entry is a cached resolution outcome. Found=false encodes a confirmed
// miss so repeated lookups for invalid or hostile hostnames stay cheap.
type Entry struct {
	OrgID string
	Kind  ResolutionKind
	Found bool
}

// DomainCache is a bounded host-to-organization cache with explicit
// invalidation. It is safe for concurrent use.
type DomainCache struct {
	entries *lru.Cache[string, Entry]
}

// NewDomainCache builds a cache bounded to size entries; size <= 0 selects
// DefaultCacheSize.
func NewDomainCache(size int) (*DomainCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, Entry](size)
	if err != nil {
		return nil, err
	}
	return &DomainCache{entries: entries}, nil
}

// Get returns the cached entry for host, if any.
func (c *DomainCache) Get(host string) (Entry, bool) {
	return c.entries.Get(host)
}

// Put records a positive resolution.
func (c *DomainCache) Put(host, orgID string, kind ResolutionKind) {
	c.entries.Add(host, Entry{OrgID: orgID, Kind: kind, Found: true})
}

// PutNegative records a confirmed miss for host.
func (c *DomainCache) PutNegative(host string) {
	c.entries.Add(host, Entry{})
}

// Invalidate removes the entry for a single host.
func (c *DomainCache) Invalidate(host string) {
	c.entries.Remove(host)
}

// InvalidateOrg removes every positive entry pointing at orgID. Collaborators
// call this when an organization's domain configuration changes.
func (c *DomainCache) InvalidateOrg(orgID string) {
	for _, host := range c.entries.Keys() {
		if entry, ok := c.entries.Peek(host); ok && entry.Found && entry.OrgID == orgID {
			c.entries.Remove(host)
		}
	}
}

// Purge drops every entry.
func (c *DomainCache) Purge() {
	c.entries.Purge()
}

// Len reports the number of cached entries.
func (c *DomainCache) Len() int {
	return c.entries.Len()
}
