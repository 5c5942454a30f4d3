package server

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const registryShards = 16

// registry tracks live connections, sharded by connection id to keep accept
// and disconnect from contending on one lock
type registry struct {
	shards    [registryShards]registryShard
	shardMask uint64
}

type registryShard struct {
	mu      sync.Mutex
	clients map[string]*Client
}

func newRegistry() *registry {
	r := &registry{shardMask: registryShards - 1}
	for i := range r.shards {
		r.shards[i].clients = make(map[string]*Client)
	}
	return r
}

func (r *registry) shard(id string) *registryShard {
	return &r.shards[xxhash.Sum64String(id)&r.shardMask]
}

func (r *registry) add(c *Client) {
	sh := r.shard(c.id)
	sh.mu.Lock()
	sh.clients[c.id] = c
	sh.mu.Unlock()
}

func (r *registry) remove(id string) {
	sh := r.shard(id)
	sh.mu.Lock()
	delete(sh.clients, id)
	sh.mu.Unlock()
}

func (r *registry) get(id string) (*Client, bool) {
	sh := r.shard(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	c, ok := sh.clients[id]
	return c, ok
}

func (r *registry) len() int {
	n := 0
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		n += len(sh.clients)
		sh.mu.Unlock()
	}
	return n
}

// each calls fn for a snapshot of the registered clients, outside the locks
func (r *registry) each(fn func(*Client)) {
	var snapshot []*Client
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.Lock()
		for _, c := range sh.clients {
			snapshot = append(snapshot, c)
		}
		sh.mu.Unlock()
	}
	for _, c := range snapshot {
		fn(c)
	}
}
