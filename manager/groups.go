package manager

import (
	"context"

	"github.com/chronocache/chronocache/entry"
	"github.com/chronocache/chronocache/key"
)

// Group is a namespaced façade over a Manager that auto-tags every
// write with the group's own tag, so InvalidateAll can drop every key
// the group ever wrote in one call.
type Group[T any] struct {
	m         *Manager[T]
	namespace string
}

func newGroup[T any](m *Manager[T], namespace string) *Group[T] {
	return &Group[T]{m: m, namespace: namespace}
}

func (g *Group[T]) groupKey(k string) key.Tuple { return key.Of(g.namespace, k) }

func (g *Group[T]) groupTag() string { return "group:" + g.namespace }

// Get reads a key scoped to this group.
func (g *Group[T]) Get(ctx context.Context, k string) (Result[T], error) {
	return g.m.Get(ctx, g.groupKey(k))
}

// Set writes a key scoped to this group, injecting the group's tag
// into opts so InvalidateAll can find it later.
func (g *Group[T]) Set(ctx context.Context, k string, value T, opts entry.Options) error {
	opts.Tags = append(opts.Tags, g.groupTag())
	return g.m.Set(ctx, g.groupKey(k), value, opts)
}

// Delete removes a single key scoped to this group.
func (g *Group[T]) Delete(ctx context.Context, k string) (bool, error) {
	return g.m.Delete(ctx, g.groupKey(k))
}

// InvalidateAll drops every key this group has ever written.
func (g *Group[T]) InvalidateAll(ctx context.Context) (uint64, error) {
	return g.m.DeleteByTag(ctx, g.groupTag())
}

// Keys lists every key currently in this group.
func (g *Group[T]) Keys(ctx context.Context) ([]string, error) {
	return g.m.GetKeysByTag(ctx, g.groupTag())
}
