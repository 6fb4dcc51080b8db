// Package geometry maps between on-screen-display coordinates of the
// host video window and pixel coordinates of the remote video frame.
//
// The host renders the remote desktop letterboxed inside its window:
// the OSD viewport has margins on each side and the frame fills the
// rest. Mapping in either direction is an integer scale between the
// margin-trimmed viewport and the frame, clamped to the destination
// rectangle.
package geometry

// Viewport describes the host OSD dimensions: margins (left, right,
// top, bottom) and total size. Matches mpv's osd-dimensions property.
type Viewport struct {
	ML, MR, MT, MB int64
	W, H           int64
}

// FrameSize is the remote video frame size in pixels. Matches mpv's
// video-params w/h.
type FrameSize struct {
	W, H int64
}

// ToRemote maps a host OSD position to frame coordinates. ok is false
// when the effective viewport collapses to zero on either axis, in
// which case the update must be suppressed rather than computed.
func ToRemote(x, y int64, vp Viewport, fr FrameSize) (rx, ry int64, ok bool) {
	denomX := vp.W - vp.ML - vp.MR
	denomY := vp.H - vp.MT - vp.MB
	if denomX == 0 || denomY == 0 {
		return 0, 0, false
	}

	rx = clamp((x-vp.ML)*fr.W/denomX, 0, fr.W)
	ry = clamp((y-vp.MT)*fr.H/denomY, 0, fr.H)
	return rx, ry, true
}

// ToLocal maps a frame coordinate back to a host OSD position. ok is
// false when the frame size is zero on either axis.
func ToLocal(rx, ry int64, vp Viewport, fr FrameSize) (x, y int64, ok bool) {
	if fr.W == 0 || fr.H == 0 {
		return 0, 0, false
	}

	x = clamp(rx*(vp.W-vp.ML-vp.MR)/fr.W+vp.ML, 0, vp.W)
	y = clamp(ry*(vp.H-vp.MT-vp.MB)/fr.H+vp.MT, 0, vp.H)
	return x, y, true
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
