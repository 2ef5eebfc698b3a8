// Package mirror implements the local mirror cache: an in-memory map from
// entity id to last-known entity state, owned by exactly one view instance.
package mirror

// Cache shadows remote entity state for one view. It is deliberately not
// safe for concurrent use; the owning view serializes access the same way
// the original client marshaled every mutation onto a single context.
type Cache[V any] struct {
	entries map[string]V
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{entries: make(map[string]V)}
}

// Get returns the cached entity for id.
func (c *Cache[V]) Get(id string) (V, bool) {
	v, ok := c.entries[id]
	return v, ok
}

// Put stores the entity for id, replacing any previous state.
func (c *Cache[V]) Put(id string, v V) {
	c.entries[id] = v
}

// Delete removes the entity for id.
func (c *Cache[V]) Delete(id string) {
	delete(c.entries, id)
}

// Len returns the number of cached entities.
func (c *Cache[V]) Len() int {
	return len(c.entries)
}

// Clear discards all entries. Called on view teardown to bound memory.
func (c *Cache[V]) Clear() {
	c.entries = make(map[string]V)
}

// Each invokes fn for every cached entity.
func (c *Cache[V]) Each(fn func(id string, v V)) {
	for id, v := range c.entries {
		fn(id, v)
	}
}
