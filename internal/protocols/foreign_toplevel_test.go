package protocols

import (
	"encoding/binary"
	"testing"
)

func packStates(states ...uint32) []byte {
	data := make([]byte, 4+4*len(states))
	binary.LittleEndian.PutUint32(data, uint32(4*len(states)))
	for i, s := range states {
		binary.LittleEndian.PutUint32(data[4+4*i:], s)
	}
	return data
}

func TestParseStateArray(t *testing.T) {
	states := parseStateArray(packStates(ToplevelStateActivated, ToplevelStateFullscreen))
	if len(states) != 2 {
		t.Fatalf("got %d states, want 2", len(states))
	}
	if states[0] != ToplevelStateActivated || states[1] != ToplevelStateFullscreen {
		t.Errorf("unexpected states %v", states)
	}
}

func TestParseStateArrayEmpty(t *testing.T) {
	if states := parseStateArray(packStates()); len(states) != 0 {
		t.Errorf("empty array decoded as %v", states)
	}
	if states := parseStateArray(nil); states != nil {
		t.Errorf("nil payload decoded as %v", states)
	}
}

func TestParseStateArrayTruncated(t *testing.T) {
	data := packStates(ToplevelStateFullscreen, ToplevelStateMaximized)
	// Claimed length runs past the payload; the parser stops at the
	// bytes actually present.
	binary.LittleEndian.PutUint32(data, 64)

	states := parseStateArray(data)
	if len(states) != 2 {
		t.Errorf("got %d states, want 2", len(states))
	}
}
