// Package export writes explorer results to files: static SVG/PNG renderings
// of the network projection and the top-values chart, and the filtered
// triples themselves as CSV, JSON, JSONL or a SQLite database.
package export

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
)

// ErrNothingToExport is returned when the input has nothing to render or write.
var ErrNothingToExport = errors.New("nothing to export")

// Image formats.
const (
	FormatSVG = "svg"
	FormatPNG = "png"
)

// resolveImageFormat normalises format, inferring it from path when empty.
// A path without an extension gets ".svg" appended.
func resolveImageFormat(path, format string) (string, string, error) {
	if path == "" {
		return "", "", fmt.Errorf("output path is required")
	}
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".svg":
			format = FormatSVG
		case ".png":
			format = FormatPNG
		case "":
			format = FormatSVG
			path += ".svg"
		default:
			format = FormatSVG
		}
	}
	if format != FormatSVG && format != FormatPNG {
		return "", "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	return path, format, nil
}

func ensureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	return nil
}

var (
	colorBackdrop = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorAxis     = color.RGBA{0xcb, 0xd5, 0xe1, 0xff}
	colorBar      = color.RGBA{0xcb, 0xd5, 0xe1, 0xff}
	colorEdge     = color.RGBA{0xcb, 0xd5, 0xe1, 0xb3}
	colorID       = color.RGBA{0x0e, 0xa5, 0xe9, 0xff}
	colorValue    = color.RGBA{0x94, 0xa3, 0xb8, 0xff}
	colorText     = color.RGBA{0x33, 0x41, 0x55, 0xff}
	colorSubtle   = color.RGBA{0x64, 0x74, 0x8b, 0xff}
)

// clip keeps the first max runes of s.
func clip(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func opacity(c color.RGBA) string {
	return fmt.Sprintf("%.2f", float64(c.A)/255)
}
