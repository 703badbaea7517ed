package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeWheelScheduleAndAdvance(t *testing.T) {
	w := newTimeWheel(10*time.Millisecond, time.Second)
	w.schedule("a", 10*time.Millisecond)
	w.schedule("b", 30*time.Millisecond)

	require.Equal(t, 2, w.len())

	assert.Empty(t, w.advance(), "a key is never drained on the very next tick")
	got := w.advance()
	assert.Contains(t, got, "a")
	assert.NotContains(t, got, "b")
	assert.Equal(t, 1, w.len())
}

func TestTimeWheelRemove(t *testing.T) {
	w := newTimeWheel(10*time.Millisecond, time.Second)
	w.schedule("a", 10*time.Millisecond)
	w.remove("a")
	assert.Equal(t, 0, w.len())
}

func TestTimeWheelRescheduleReplaces(t *testing.T) {
	w := newTimeWheel(10*time.Millisecond, time.Second)
	w.schedule("a", 10*time.Millisecond)
	w.schedule("a", 50*time.Millisecond)
	assert.Equal(t, 1, w.len())
}
