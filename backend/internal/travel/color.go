package travel

import (
	"strconv"
	"strings"
)

// Named colors used by travel points, ARGB.
var pointColors = map[string]uint32{
	"red":        0xffd00d0d,
	"orange":     0xffff5020,
	"yellow":     0xffeecc22,
	"lightgreen": 0xff88e030,
	"green":      0xff00842b,
	"lightblue":  0xff10c0f0,
	"blue":       0xff1010a0,
	"purple":     0xffa71de1,
	"pink":       0xffe044bb,
	"brown":      0xff8e2512,
	"black":      0xff000001,
	"darkyellow": 0xffa39e0e,
}

// ColorByTag maps a color tag value to ARGB. Named palette entries and
// #rrggbb or #aarrggbb literals are understood; anything else yields 0.
func ColorByTag(tag string) uint32 {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return 0
	}
	if c, ok := pointColors[tag]; ok {
		return c
	}
	if !strings.HasPrefix(tag, "#") {
		return 0
	}
	hex := tag[1:]
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0
	}
	switch len(hex) {
	case 6:
		return 0xff000000 | uint32(v)
	case 8:
		return uint32(v)
	}
	return 0
}
