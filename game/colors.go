/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"slices"

	"github.com/lucasb-eyer/go-colorful"
)

var defaultPalette = []string{
	"#ff4400",
	"#ad0ab7",
	"#ff9000",
	"#0088fd",
	"#00b341",
	"#7034be",
	"#ffbd00",
	"#384fbd",
	"#ff0060",
	"#009985",
	"#ff1222",
	"#79c32d",
}

// GenerateColors returns at least n distinct colors: the default palette
// while it is large enough, evenly spaced hues otherwise.
func GenerateColors(n int) []string {
	if n <= len(defaultPalette) {
		return slices.Clone(defaultPalette)
	}

	colors := make([]string, 0, n)
	step := 360 / float64(n)
	for i := range n {
		colors = append(colors, colorful.Hsl(step*float64(i), 1, 0.4).Hex())
	}

	return colors
}
