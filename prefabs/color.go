package prefabs

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ParseColor reads "#rrggbb" or "#rrggbbaa". An empty string is a zero
// color so callers can fall back to a palette entry.
func ParseColor(value string) (color.NRGBA, error) {
	if value == "" {
		return color.NRGBA{}, nil
	}

	s := strings.TrimPrefix(value, "#")

	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color format: %s", value)
	}

	parse := func(start int) (uint8, error) {
		v, err := strconv.ParseUint(s[start:start+2], 16, 8)
		return uint8(v), err
	}

	var out color.NRGBA
	var err error
	if out.R, err = parse(0); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color format: %s", value)
	}
	if out.G, err = parse(2); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color format: %s", value)
	}
	if out.B, err = parse(4); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color format: %s", value)
	}

	out.A = 255
	if len(s) == 8 {
		if out.A, err = parse(6); err != nil {
			return color.NRGBA{}, fmt.Errorf("invalid color format: %s", value)
		}
	}
	return out, nil
}
