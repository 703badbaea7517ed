package key

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringKey(t *testing.T) {
	assert.Equal(t, "foo", String("foo").Key())
}

func TestTupleKey(t *testing.T) {
	assert.Equal(t, "user:42:profile", Of("user", "42", "profile").Key())
}

func TestCompositeKey(t *testing.T) {
	k := NewComposite().Add("a").Add("b").Add("c").Key()
	assert.Equal(t, "a:b:c", k)
}
