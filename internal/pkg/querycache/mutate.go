// internal/pkg/querycache/mutate.go
package querycache

import "context"

// Patch is an optimistic local update applied before a write is confirmed.
type Patch struct {
	Key    Key
	Update func(old any) any
}

// PatchOf builds a Patch with a typed updater. The updater receives the zero
// value when nothing is cached yet.
func PatchOf[T any](key Key, fn func(old T) T) Patch {
	return Patch{
		Key: key,
		Update: func(old any) any {
			v, _ := old.(T)
			return fn(v)
		},
	}
}

// Mutation describes one user write.
//
// Optimistic patches are applied first. If Do fails every patched key is
// rolled back to its previous value; a key that changed again while Do ran is
// also invalidated. If Do succeeds every Invalidate prefix is
// marked stale so the server value replaces the local guess.
type Mutation struct {
	Optimistic []Patch
	Do         func(ctx context.Context) error
	Invalidate []Key
}

type saved struct {
	snap    Snapshot
	existed bool
	version uint64
}

// Mutate runs m.
func (c *Cache) Mutate(ctx context.Context, m Mutation) error {
	// One snapshot per key: the value before the first patch.
	snapshots := make([]*saved, 0, len(m.Optimistic))
	byKey := make(map[string]*saved, len(m.Optimistic))
	for _, p := range m.Optimistic {
		c.Cancel(p.Key)
		snap, ok := c.Peek(p.Key)
		_, version := c.patch(p.Key, p.Update)
		if s, seen := byKey[p.Key.String()]; seen {
			s.version = version
			continue
		}
		s := &saved{snap: snap, existed: ok, version: version}
		byKey[p.Key.String()] = s
		snapshots = append(snapshots, s)
	}

	if err := m.Do(ctx); err != nil {
		for i := len(snapshots) - 1; i >= 0; i-- {
			c.restore(snapshots[i].snap, snapshots[i].existed, snapshots[i].version)
		}
		return err
	}

	for _, k := range m.Invalidate {
		c.Invalidate(k)
	}
	return nil
}
