package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeRemaining(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)
	a.EndTime = now.Add(30 * time.Second)

	assert.Equal(t, 30*time.Second, TimeRemaining(a, now))
	assert.Equal(t, time.Duration(0), TimeRemaining(a, now.Add(time.Minute)), "floored at zero past the deadline")
}

func TestExpired(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)
	a.EndTime = now.Add(10 * time.Second)

	assert.False(t, Expired(a, now))
	assert.True(t, Expired(a, a.EndTime), "deadline itself counts as expired")
	assert.True(t, Expired(a, a.EndTime.Add(time.Second)))
}

func TestMaybeExtendInsideWindow(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)
	a.EndTime = now.Add(90 * time.Second) // inside the 2m window

	extended := MaybeExtend(a, now)
	require.NotNil(t, extended)
	assert.Equal(t, now.Add(2*time.Minute), *extended)
	assert.Equal(t, a.EndTime, *extended)
	assert.Equal(t, 1, a.ExtensionCount)
}

func TestMaybeExtendOutsideWindow(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)
	a.EndTime = now.Add(time.Hour)

	assert.Nil(t, MaybeExtend(a, now))
	assert.Equal(t, 0, a.ExtensionCount)
	assert.Equal(t, now.Add(time.Hour), a.EndTime)
}

func TestMaybeExtendRespectsCap(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)
	a.MaxExtensions = 2
	a.EndTime = now.Add(30 * time.Second)

	require.NotNil(t, MaybeExtend(a, now))
	require.NotNil(t, MaybeExtend(a, a.EndTime.Add(-30*time.Second)))
	assert.Equal(t, 2, a.ExtensionCount)

	// Cap hit: the deadline stays put even for a last-second bid.
	beforeEnd := a.EndTime.Add(-time.Second)
	assert.Nil(t, MaybeExtend(a, beforeEnd))
	assert.Equal(t, 2, a.ExtensionCount)
}

func TestMaybeExtendDisabled(t *testing.T) {
	now := time.Now()
	a := newTestAuction(now)
	a.ExtensionWindow = 0
	a.EndTime = now.Add(time.Second)

	assert.Nil(t, MaybeExtend(a, now))
}
