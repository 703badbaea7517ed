// Package key defines the CacheKey abstraction every manager operation
// accepts. A CacheKey is anything that can render itself into a flat
// cache key string, optionally under a namespace.
package key

import "strings"

// CacheKey renders to the string a backend actually stores under.
type CacheKey interface {
	// Key returns the key body, before any manager-level namespace prefix.
	Key() string
}

// String is the simplest CacheKey: the string itself.
type String string

func (s String) Key() string { return string(s) }

// Tuple joins 2+ parts with ':', the separator used everywhere a
// composite key is rendered.
type Tuple []string

func (t Tuple) Key() string { return strings.Join(t, ":") }

// Of builds a Tuple from individual parts, e.g. key.Of("user", id, "profile").
func Of(parts ...string) Tuple { return Tuple(parts) }

// Composite is a builder for keys assembled incrementally:
// NewComposite().Add("user").Add(id).
type Composite struct {
	parts []string
}

func NewComposite() *Composite { return &Composite{} }

func (c *Composite) Add(part string) *Composite {
	c.parts = append(c.parts, part)
	return c
}

func (c *Composite) Key() string { return strings.Join(c.parts, ":") }
