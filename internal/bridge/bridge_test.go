package bridge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bnema/waylink/internal/mpv"
)

func TestInitialFlagFallsBackOnError(t *testing.T) {
	read := func(string) (bool, error) { return false, fmt.Errorf("property unavailable") }

	// Forwarding starts enabled when the property can't be read yet.
	assert.True(t, initialFlag(mpv.PropInputForwarding, read, true))
	assert.False(t, initialFlag(mpv.PropForceGrabCursor, read, false))
}

func TestInitialFlagPrefersReadValue(t *testing.T) {
	read := func(string) (bool, error) { return false, nil }
	assert.False(t, initialFlag(mpv.PropInputForwarding, read, true))

	read = func(string) (bool, error) { return true, nil }
	assert.True(t, initialFlag(mpv.PropForceGrabCursor, read, false))
}
