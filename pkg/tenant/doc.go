// Package tenant maps inbound hostnames to organizations for multi-tenant
// routing. A Resolver normalizes the host, short-circuits the bare API
// domain, rejects reserved subdomains, and resolves generated subdomains,
// custom subdomains, and verified custom domains through a pluggable Store,
// caching both hits and confirmed misses in a bounded DomainCache.
package tenant
