package backend

import "strings"

// InvalidationKind discriminates the four message shapes a distributed
// backend broadcasts on its invalidation channel.
type InvalidationKind int

const (
	InvalidateKey InvalidationKind = iota
	InvalidatePattern
	InvalidateTag
	InvalidateClear
)

// Invalidation is one cross-process invalidation message. The wire
// encoding is a newline-free ASCII string: "key:<K>", "pattern:<P>",
// "tag:<T>", or the literal "clear".
type Invalidation struct {
	Kind  InvalidationKind
	Value string
}

// KeyInvalidation builds a single-key message.
func KeyInvalidation(key string) Invalidation {
	return Invalidation{Kind: InvalidateKey, Value: key}
}

// TagInvalidation builds a delete-by-tag message.
func TagInvalidation(tag string) Invalidation {
	return Invalidation{Kind: InvalidateTag, Value: tag}
}

// KeyInvalidations wraps each key in a KeyInvalidation, the common
// case for PublishInvalidation after a local delete or cascade.
func KeyInvalidations(keys ...string) []Invalidation {
	msgs := make([]Invalidation, len(keys))
	for i, k := range keys {
		msgs[i] = KeyInvalidation(k)
	}
	return msgs
}

// String renders the wire encoding.
func (m Invalidation) String() string {
	switch m.Kind {
	case InvalidateKey:
		return "key:" + m.Value
	case InvalidatePattern:
		return "pattern:" + m.Value
	case InvalidateTag:
		return "tag:" + m.Value
	default:
		return "clear"
	}
}

// ParseInvalidation decodes a wire message. Unknown prefixes return
// ok=false and the message is dropped, so a newer peer can introduce
// message types without breaking older subscribers.
func ParseInvalidation(s string) (Invalidation, bool) {
	if s == "clear" {
		return Invalidation{Kind: InvalidateClear}, true
	}
	prefix, value, found := strings.Cut(s, ":")
	if !found {
		return Invalidation{}, false
	}
	switch prefix {
	case "key":
		return Invalidation{Kind: InvalidateKey, Value: value}, true
	case "pattern":
		return Invalidation{Kind: InvalidatePattern, Value: value}, true
	case "tag":
		return Invalidation{Kind: InvalidateTag, Value: value}, true
	default:
		return Invalidation{}, false
	}
}
