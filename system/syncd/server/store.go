package server

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signadot/scenesync/arraylike"
	"github.com/signadot/scenesync/debug"
	"github.com/signadot/scenesync/jsondiff"
	"github.com/signadot/scenesync/scene"
	"github.com/signadot/scenesync/system/syncd/api"
	"github.com/signadot/scenesync/transform"
)

// Eviction reasons, as reported to the eviction hook.
const (
	EvictLRU    = "lru"
	EvictTTL    = "ttl"
	EvictResync = "resync"
)

// PatchError reports a patch payload which could not be applied to the
// client's cached snapshot, or which produced an undecodable scene.
type PatchError struct {
	ClientID string
	Err      error
}

func (e *PatchError) Error() string {
	return fmt.Sprintf("patch from client %s: %v", e.ClientID, e.Err)
}

func (e *PatchError) Unwrap() error { return e.Err }

func (e *PatchError) Is(target error) bool {
	return target == api.ErrPatchFailed
}

// Result is the outcome of an accepted payload.
type Result struct {
	ClientID string
	Type     api.PayloadType
	// Snapshot is the client's scene snapshot after the payload.
	Snapshot []byte
	// Canvas is Snapshot decoded.
	Canvas *scene.Canvas
}

type entry struct {
	id string

	// mu serializes payloads of one client: read, patch, decode and
	// write back happen under it.
	mu       sync.Mutex
	snapshot []byte
	dec      *scene.Decoder

	// guarded by Store.mu
	lastUse time.Time
	elem    *list.Element

	evicted atomic.Bool
}

// Store caches, per client, the last accepted scene snapshot and the array
// identity store needed to decode the next one.
type Store struct {
	maxClients int
	ttl        time.Duration
	registry   *transform.Registry
	now        func() time.Time
	onEvict    func(id, reason string)

	mu      sync.Mutex
	entries map[string]*entry
	// lru holds entries, most recently used first.
	lru *list.List
}

// NewStore returns an empty store bounded as cfg says. A nil registry
// means one whose Load links are confined to cfg.LoadRoots; a nil now means
// time.Now.
func NewStore(cfg *Config, reg *transform.Registry, now func() time.Time) *Store {
	if reg == nil {
		reg = cfg.registry()
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		maxClients: cfg.MaxClients,
		ttl:        cfg.ClientTTL,
		registry:   reg,
		now:        now,
		entries:    map[string]*entry{},
		lru:        list.New(),
	}
}

// OnEvict sets a hook called, without locks held, for every evicted client.
func (s *Store) OnEvict(f func(id, reason string)) {
	s.onEvict = f
}

// Handle applies p to the client's cached state and decodes the result.
//
// A patch for an unknown client, or any payload whose arrays reference
// identities the server never received, yields an error matching
// api.ErrResyncRequired. A patch which does not apply yields a
// *PatchError.
func (s *Store) Handle(ctx context.Context, p *api.Payload) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := s.acquire(p.ClientID, p.Type == api.Absolute)
		if e == nil {
			return nil, api.Errorf(api.ErrCodeResyncRequired, "no cached scene for client %s", p.ClientID)
		}
		e.mu.Lock()
		if e.evicted.Load() {
			e.mu.Unlock()
			if p.Type == api.Patch {
				return nil, api.Errorf(api.ErrCodeResyncRequired, "client %s evicted", p.ClientID)
			}
			continue
		}
		res, err := s.apply(e, p)
		e.mu.Unlock()
		return res, err
	}
}

// apply runs with e.mu held.
func (s *Store) apply(e *entry, p *api.Payload) (*Result, error) {
	var snapshot []byte
	switch p.Type {
	case api.Absolute:
		snapshot = p.Data
	case api.Patch:
		if e.snapshot == nil {
			// created by a concurrent absolute which failed
			return nil, api.Errorf(api.ErrCodeResyncRequired, "no cached scene for client %s", p.ClientID)
		}
		patched, err := jsondiff.Apply(e.snapshot, p.Data)
		if err != nil {
			return nil, &PatchError{ClientID: p.ClientID, Err: err}
		}
		snapshot = patched
	}
	if debug.Sync() {
		debug.Logf("sync %s %s: %d bytes\n", p.ClientID, p.Type, len(p.Data))
		if p.Type == api.Patch {
			debug.LogAny(p.Data)
		}
	}
	canvas, err := e.dec.Decode(snapshot)
	if err != nil {
		// the decode store may be partially updated, start over
		s.evict(e, EvictResync)
		switch {
		case errors.Is(err, arraylike.ErrIdentityNotFound):
			return nil, api.Errorf(api.ErrCodeResyncRequired, "client %s: %v", p.ClientID, err)
		case p.Type == api.Patch:
			return nil, &PatchError{ClientID: p.ClientID, Err: err}
		}
		return nil, api.Errorf(api.ErrCodeInvalidPayload, "%v", err)
	}
	e.snapshot = snapshot
	return &Result{ClientID: p.ClientID, Type: p.Type, Snapshot: snapshot, Canvas: canvas}, nil
}

// acquire returns the entry of id, marking it most recently used. When
// create is set a missing entry is created, evicting the least recently
// used entries beyond the client bound.
func (s *Store) acquire(id string, create bool) *entry {
	s.mu.Lock()
	var evicted []*entry
	e, ok := s.entries[id]
	switch {
	case ok:
		s.lru.MoveToFront(e.elem)
	case create:
		e = &entry{id: id, dec: scene.NewDecoder(s.registry)}
		e.elem = s.lru.PushFront(e)
		s.entries[id] = e
		for s.maxClients > 0 && s.lru.Len() > s.maxClients {
			old := s.lru.Back().Value.(*entry)
			s.removeLocked(old)
			evicted = append(evicted, old)
		}
	default:
		s.mu.Unlock()
		return nil
	}
	e.lastUse = s.now()
	s.mu.Unlock()
	s.notify(evicted, EvictLRU)
	return e
}

func (s *Store) removeLocked(e *entry) {
	if s.entries[e.id] != e {
		return
	}
	delete(s.entries, e.id)
	s.lru.Remove(e.elem)
	e.evicted.Store(true)
}

func (s *Store) evict(e *entry, reason string) {
	s.mu.Lock()
	present := s.entries[e.id] == e
	s.removeLocked(e)
	s.mu.Unlock()
	if present {
		s.notify([]*entry{e}, reason)
	}
}

func (s *Store) notify(es []*entry, reason string) {
	if s.onEvict == nil {
		return
	}
	for _, e := range es {
		s.onEvict(e.id, reason)
	}
}

// Evict drops the cached state of a client. It reports whether there was
// any.
func (s *Store) Evict(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if ok {
		s.evict(e, EvictResync)
	}
	return ok
}

// Snapshot returns the cached snapshot of a client.
func (s *Store) Snapshot(id string) ([]byte, bool) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot, e.snapshot != nil
}

// Len returns the number of cached clients.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep evicts the entries idle for longer than the configured TTL and
// returns how many it evicted.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	var expired []*entry
	// idle entries gather at the back
	for el := s.lru.Back(); el != nil; {
		e := el.Value.(*entry)
		if !e.lastUse.Before(cutoff) {
			break
		}
		el = el.Prev()
		s.removeLocked(e)
		expired = append(expired, e)
	}
	s.mu.Unlock()
	s.notify(expired, EvictTTL)
	return len(expired)
}

// RunJanitor sweeps every interval until ctx is done. It returns nil when
// expiry is disabled.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) error {
	if s.ttl <= 0 || interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Sweep()
		}
	}
}
