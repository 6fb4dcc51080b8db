package mpv

import "github.com/bnema/waylink/internal/geometry"

// Property-change payloads arrive as decoded JSON: maps with float64
// numbers. Missing or non-numeric keys decode as zero, matching the
// player's behavior of omitting unavailable fields.

// DecodeMousePos extracts x/y from a mouse-pos payload.
func DecodeMousePos(data interface{}) (x, y int64, ok bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return 0, 0, false
	}
	return asInt64(m["x"]), asInt64(m["y"]), true
}

// DecodeViewport extracts margins and size from an osd-dimensions
// payload.
func DecodeViewport(data interface{}) (geometry.Viewport, bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return geometry.Viewport{}, false
	}
	return geometry.Viewport{
		ML: asInt64(m["ml"]),
		MR: asInt64(m["mr"]),
		MT: asInt64(m["mt"]),
		MB: asInt64(m["mb"]),
		W:  asInt64(m["w"]),
		H:  asInt64(m["h"]),
	}, true
}

// DecodeFrameSize extracts w/h from a video-params payload.
func DecodeFrameSize(data interface{}) (geometry.FrameSize, bool) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return geometry.FrameSize{}, false
	}
	return geometry.FrameSize{
		W: asInt64(m["w"]),
		H: asInt64(m["h"]),
	}, true
}

// DecodeFlag extracts a boolean payload.
func DecodeFlag(data interface{}) (value, ok bool) {
	b, ok := data.(bool)
	return b, ok
}

// DecodeString extracts a string payload. A nil payload (property
// unset) decodes as the empty string.
func DecodeString(data interface{}) (value string, ok bool) {
	if data == nil {
		return "", true
	}
	s, ok := data.(string)
	return s, ok
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
