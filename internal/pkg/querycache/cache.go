// internal/pkg/querycache/cache.go
package querycache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the lifecycle state of a cached entry.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
	StatusSuccess
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	default:
		return "idle"
	}
}

// Fetcher loads the server value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Snapshot is a read-only view of an entry at one point in time.
type Snapshot struct {
	Key        Key
	Data       any
	HasData    bool
	Err        error
	Status     Status
	FetchedAt  time.Time
	IsFetching bool
	IsStale    bool
}

// Options tunes cache behaviour. Zero values fall back to DefaultOptions.
type Options struct {
	StaleTime  time.Duration
	GCTime     time.Duration
	Retry      int
	RetryDelay time.Duration
	Now        func() time.Time
	Logger     *zap.Logger
	Observer   Observer
}

// DefaultOptions mirrors the timings the application runs with.
func DefaultOptions() Options {
	return Options{
		StaleTime:  30 * time.Second,
		GCTime:     5 * time.Minute,
		Retry:      0,
		RetryDelay: 500 * time.Millisecond,
		Now:        time.Now,
	}
}

// Cache deduplicates and caches server reads keyed by operation+parameters.
// It is safe for concurrent use.
type Cache struct {
	opts     Options
	logger   *zap.Logger
	observer Observer

	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64
	subSeq  uint64
}

type entry struct {
	key       Key
	data      any
	hasData   bool
	err       error
	status    Status
	fetchedAt time.Time
	invalid   bool
	lastUsed  time.Time

	// issued is the generation of the most recently issued fetch. Only a
	// call carrying this generation may store its result.
	issued   uint64
	inflight *call
	fetcher  Fetcher

	// pending holds local patches applied while a fetch was in flight. The
	// fetch may have read the server before the patched row existed, so
	// they are replayed onto its result.
	pending []func(old any) any
	// version counts writes to data.
	version uint64

	subs map[uint64]func(Snapshot)
}

type call struct {
	gen  uint64
	done chan struct{}
	data any
	err  error
}

type notification struct {
	fns  []func(Snapshot)
	snap Snapshot
}

func (n notification) fire() {
	for _, fn := range n.fns {
		fn(n.snap)
	}
}

// New creates a cache.
func New(opts Options) *Cache {
	def := DefaultOptions()
	if opts.StaleTime == 0 {
		opts.StaleTime = def.StaleTime
	}
	if opts.GCTime == 0 {
		opts.GCTime = def.GCTime
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = def.RetryDelay
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	return &Cache{
		opts:     opts,
		logger:   logger,
		observer: observer,
		entries:  make(map[string]*entry),
	}
}

// Get returns the cached value for key when it is fresh. Otherwise it runs
// fetch (or attaches to the fetch already in flight for key) and waits.
// Cancelling ctx only abandons the wait; the fetch itself keeps running.
func (c *Cache) Get(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	op := key.Operation()

	c.mu.Lock()
	e := c.entryLocked(key)
	e.fetcher = fetch
	e.lastUsed = c.opts.Now()
	if c.freshLocked(e) {
		data := e.data
		c.mu.Unlock()
		c.observer.Hit(op)
		return data, nil
	}
	cl := e.inflight
	if cl == nil {
		cl = c.startLocked(e, fetch)
	}
	c.mu.Unlock()
	c.observer.Miss(op)

	select {
	case <-cl.done:
		return cl.data, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ensure warms key without blocking the caller.
func (c *Cache) Ensure(key Key, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entryLocked(key)
	e.fetcher = fetch
	e.lastUsed = c.opts.Now()
	if c.freshLocked(e) || e.inflight != nil {
		return
	}
	c.startLocked(e, fetch)
}

// Peek returns the current snapshot for key without fetching.
func (c *Cache) Peek(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{Key: key}, false
	}
	return c.snapshotLocked(e), true
}

// Invalidate marks every entry matching prefix stale. Entries with live
// subscribers are refetched in the background; an in-flight fetch issued
// before the invalidation is superseded and its result is not stored.
func (c *Cache) Invalidate(prefix Key) {
	var pending []notification

	c.mu.Lock()
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		pending = append(pending, c.invalidateLocked(e))
	}
	c.mu.Unlock()

	for _, n := range pending {
		n.fire()
	}
}

// Cancel supersedes in-flight fetches for entries matching prefix without
// marking them stale. Used before an optimistic patch so a read issued
// earlier cannot overwrite it.
func (c *Cache) Cancel(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) && e.inflight != nil {
			c.supersedeLocked(e)
		}
	}
}

// SetData patches key locally with no network round-trip. updater receives
// the current value (nil when absent) and must be pure and idempotent: when a
// fetch for key is in flight it is applied again to that fetch's result.
func (c *Cache) SetData(key Key, updater func(old any) any) any {
	next, _ := c.patch(key, updater)
	return next
}

func (c *Cache) patch(key Key, updater func(old any) any) (any, uint64) {
	c.mu.Lock()
	e := c.entryLocked(key)
	var old any
	if e.hasData {
		old = e.data
	}
	next := updater(old)
	e.data = next
	e.hasData = true
	e.err = nil
	e.status = StatusSuccess
	e.invalid = false
	e.fetchedAt = c.opts.Now()
	c.deferLocked(e, updater)
	e.version++
	version := e.version
	n := c.notificationLocked(e)
	c.mu.Unlock()

	n.fire()
	return next, version
}

// Update is SetData for keys that already hold a value. It reports false and
// leaves the cache untouched when key has nothing to patch.
func (c *Cache) Update(key Key, updater func(old any) any) (any, bool) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		c.mu.Unlock()
		return nil, false
	}
	next := updater(e.data)
	e.data = next
	e.err = nil
	e.status = StatusSuccess
	c.deferLocked(e, updater)
	e.version++
	n := c.notificationLocked(e)
	c.mu.Unlock()

	n.fire()
	return next, true
}

// Subscribe registers fn for every change of key. The returned function
// removes the subscription.
func (c *Cache) Subscribe(key Key, fn func(Snapshot)) func() {
	c.mu.Lock()
	e := c.entryLocked(key)
	c.subSeq++
	id := c.subSeq
	e.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if cur, ok := c.entries[key.String()]; ok {
				delete(cur.subs, id)
				cur.lastUsed = c.opts.Now()
			}
		})
	}
}

// Remove drops every entry matching prefix, subscribers included.
func (c *Cache) Remove(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			delete(c.entries, k)
		}
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Collect garbage-collects entries that have been inactive for GCTime.
func (c *Cache) Collect() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	removed := 0
	for k, e := range c.entries {
		if len(e.subs) > 0 || e.inflight != nil {
			continue
		}
		if now.Sub(e.lastUsed) >= c.opts.GCTime {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Run collects garbage until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	interval := c.opts.GCTime / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Collect(); n > 0 {
				c.logger.Debug("query cache gc", zap.Int("removed", n))
			}
		}
	}
}

// restore puts a previous snapshot back, used to roll back optimistic patches.
// If key was written again after the patch (version moved on), the snapshot
// would drop that write, so the entry is also invalidated and refetched.
func (c *Cache) restore(snap Snapshot, existed bool, version uint64) {
	c.mu.Lock()
	e := c.entryLocked(snap.Key)
	overwritten := e.version != version
	if existed && snap.HasData {
		e.data = snap.Data
		e.hasData = true
		e.status = snap.Status
		e.err = snap.Err
		e.fetchedAt = snap.FetchedAt
	} else {
		e.data = nil
		e.hasData = false
		e.status = StatusIdle
		e.err = nil
		e.fetchedAt = time.Time{}
	}
	e.version++
	var n notification
	if overwritten {
		n = c.invalidateLocked(e)
	} else {
		n = c.notificationLocked(e)
	}
	c.mu.Unlock()

	n.fire()
}

// invalidateLocked marks e stale, superseding its in-flight fetch and
// refetching when it has subscribers.
func (c *Cache) invalidateLocked(e *entry) notification {
	e.invalid = true
	if e.inflight != nil {
		c.supersedeLocked(e)
	}
	if len(e.subs) > 0 && e.fetcher != nil {
		c.startLocked(e, e.fetcher)
	}
	return c.notificationLocked(e)
}

// deferLocked records updater for replay when a fetch is in flight.
func (c *Cache) deferLocked(e *entry, updater func(old any) any) {
	if e.inflight != nil {
		e.pending = append(e.pending, updater)
	}
}

func (c *Cache) entryLocked(key Key) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{
			key:      key,
			status:   StatusIdle,
			lastUsed: c.opts.Now(),
			subs:     make(map[uint64]func(Snapshot)),
		}
		c.entries[k] = e
	}
	return e
}

func (c *Cache) freshLocked(e *entry) bool {
	if !e.hasData || e.invalid || e.status != StatusSuccess {
		return false
	}
	return c.opts.Now().Sub(e.fetchedAt) < c.opts.StaleTime
}

func (c *Cache) supersedeLocked(e *entry) {
	c.gen++
	e.issued = c.gen
	e.inflight = nil
	c.observer.Superseded(e.key.Operation())
}

func (c *Cache) startLocked(e *entry, fetch Fetcher) *call {
	c.gen++
	cl := &call{gen: c.gen, done: make(chan struct{})}
	e.issued = cl.gen
	e.inflight = cl
	if !e.hasData {
		e.status = StatusLoading
	}
	go c.run(e, cl, fetch)
	return cl
}

func (c *Cache) run(e *entry, cl *call, fetch Fetcher) {
	data, err := c.fetchWithRetry(e.key, fetch)

	c.mu.Lock()
	var n notification
	current, ok := c.entries[e.key.String()]
	if ok && current == e && cl.gen == e.issued {
		if err != nil {
			e.err = err
			e.status = StatusError
		} else {
			for _, u := range e.pending {
				data = u(data)
			}
			e.data = data
			e.hasData = true
			e.err = nil
			e.status = StatusSuccess
			e.invalid = false
			e.fetchedAt = c.opts.Now()
			e.version++
		}
		e.pending = nil
		e.inflight = nil
		n = c.notificationLocked(e)
	} else {
		c.logger.Debug("discarding superseded query result",
			zap.String("key", e.key.String()),
			zap.Uint64("generation", cl.gen),
		)
	}
	c.mu.Unlock()

	cl.data, cl.err = data, err
	close(cl.done)
	n.fire()
}

func (c *Cache) fetchWithRetry(key Key, fetch Fetcher) (any, error) {
	op := key.Operation()
	// Detached from any caller: navigating away must not abort the request.
	ctx := context.Background()

	for attempt := 0; ; attempt++ {
		c.observer.Fetch(op)
		data, err := safeFetch(ctx, fetch)
		if err == nil {
			return data, nil
		}
		c.observer.FetchError(op)
		if attempt >= c.opts.Retry {
			c.logger.Debug("query fetch failed",
				zap.String("operation", op),
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return nil, err
		}
		time.Sleep(c.opts.RetryDelay)
	}
}

func safeFetch(ctx context.Context, fetch Fetcher) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("query fetcher panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

func (c *Cache) snapshotLocked(e *entry) Snapshot {
	stale := !e.hasData || e.invalid || c.opts.Now().Sub(e.fetchedAt) >= c.opts.StaleTime
	return Snapshot{
		Key:        e.key,
		Data:       e.data,
		HasData:    e.hasData,
		Err:        e.err,
		Status:     e.status,
		FetchedAt:  e.fetchedAt,
		IsFetching: e.inflight != nil,
		IsStale:    stale,
	}
}

func (c *Cache) notificationLocked(e *entry) notification {
	if len(e.subs) == 0 {
		return notification{}
	}
	fns := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	return notification{fns: fns, snap: c.snapshotLocked(e)}
}
