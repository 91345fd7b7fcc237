package expr

import "sync"

// Cache memoizes parsed expressions by source text. Expressions are immutable
// once parsed, so a cached *Expr may be evaluated by any number of bindings.
type Cache struct {
	exprs map[string]*Expr
	mu    sync.RWMutex
}

// NewCache creates an empty expression cache.
func NewCache() *Cache {
	return &Cache{
		exprs: make(map[string]*Expr),
	}
}

// Get retrieves the parsed expression for src.
// Returns nil if not found.
func (c *Cache) Get(src string) *Expr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exprs[src]
}

// Set stores a parsed expression.
func (c *Cache) Set(src string, x *Expr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exprs[src] = x
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.exprs)
}
