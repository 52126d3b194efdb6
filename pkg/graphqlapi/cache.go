// Package graphqlapi exposes a read-only GraphQL view over the most
// recently completed Result graphs (SPEC_FULL.md §6.1). It replaces the
// teacher's pkg/graphql, which generated a full CRUD/mutation schema over
// storage.GraphStorage — a storage layer this repo doesn't have, for a
// write surface spec.md's Non-goals exclude. The schema-generation and
// HTTP-handler shapes below are grounded on that package's schema.go and
// http.go even though the query surface itself is new.
package graphqlapi

import "github.com/cluso-security/chaingraph/pkg/model"

// perHostLimit caps how many recent results are retained per host.
const perHostLimit = 20

// Cache is an in-memory, per-host ring buffer of completed Result graphs.
// Nothing here is persisted (spec.md §6: "Persisted state: None") — a
// process restart loses the cache, same as the teacher's audit.Logger's
// in-memory ring buffer loses its events.
type Cache struct {
	byHost map[string][]*model.Result
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{byHost: make(map[string][]*model.Result)}
}

// Record appends result under every host it names, evicting the oldest
// entry per host past perHostLimit.
func (c *Cache) Record(result *model.Result) {
	if result == nil {
		return
	}
	for _, host := range result.HostAddresses {
		entries := append(c.byHost[host], result)
		if len(entries) > perHostLimit {
			entries = entries[len(entries)-perHostLimit:]
		}
		c.byHost[host] = entries
	}
}

// Latest returns the most recently recorded Result for host, or nil.
func (c *Cache) Latest(host string) *model.Result {
	entries := c.byHost[host]
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}

// Recent returns up to limit of the most recent results for host, newest
// first.
func (c *Cache) Recent(host string, limit int) []*model.Result {
	entries := c.byHost[host]
	if limit <= 0 || limit > len(entries) {
		limit = len(entries)
	}
	out := make([]*model.Result, limit)
	for i := 0; i < limit; i++ {
		out[i] = entries[len(entries)-1-i]
	}
	return out
}

// Hosts returns every host with at least one cached result.
func (c *Cache) Hosts() []string {
	hosts := make([]string, 0, len(c.byHost))
	for host := range c.byHost {
		hosts = append(hosts, host)
	}
	return hosts
}
