package explain

import (
	"image/color"
	"math"
)

// Colormap maps [0,1] onto a piecewise linear colour ramp
type Colormap []color.RGBA

// RdYlBuR is the diverging red-yellow-blue ramp, reversed so high values are red
var RdYlBuR = Colormap{
	{0x31, 0x36, 0x95, 0xff},
	{0x45, 0x75, 0xb4, 0xff},
	{0x74, 0xad, 0xd1, 0xff},
	{0xab, 0xd9, 0xe9, 0xff},
	{0xe0, 0xf3, 0xf8, 0xff},
	{0xff, 0xff, 0xbf, 0xff},
	{0xfe, 0xe0, 0x90, 0xff},
	{0xfd, 0xae, 0x61, 0xff},
	{0xf4, 0x6d, 0x43, 0xff},
	{0xd7, 0x30, 0x27, 0xff},
	{0xa5, 0x00, 0x26, 0xff},
}

// Set1 is a qualitative palette for labelling individual regions
var Set1 = []color.RGBA{
	{0xe4, 0x1a, 0x1c, 0xff},
	{0x37, 0x7e, 0xb8, 0xff},
	{0x4d, 0xaf, 0x4a, 0xff},
	{0x98, 0x4e, 0xa3, 0xff},
	{0xff, 0x7f, 0x00, 0xff},
	{0xff, 0xff, 0x33, 0xff},
	{0xa6, 0x56, 0x28, 0xff},
	{0xf7, 0x81, 0xbf, 0xff},
	{0x99, 0x99, 0x99, 0xff},
}

// Overlay colours
var (
	SupportColor  = color.RGBA{0x00, 0xc8, 0x00, 0xff}
	AgainstColor  = color.RGBA{0xdc, 0x14, 0x14, 0xff}
	BoundaryColor = color.RGBA{0xff, 0xff, 0x00, 0xff}
)

// At returns the colour at t, clamped to [0,1]
func (m Colormap) At(t float64) color.RGBA {
	if math.IsNaN(t) || t <= 0 {
		return m[0]
	}
	if t >= 1 {
		return m[len(m)-1]
	}
	pos := t * float64(len(m)-1)
	i := int(pos)
	return blend(m[i], m[i+1], pos-float64(i))
}

// blend mixes a and b, weighting b by f
func blend(a, b color.RGBA, f float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x)*(1-f) + float64(y)*f))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xff}
}
