package explain

import (
	"image"
	"image/color"
	"math/rand/v2"
)

// HideColor replaces pixels of switched-off segments
var HideColor = color.RGBA{A: 0xff}

// SampleMatrix draws numSamples binary on/off vectors over numSegments segments.
// The first row keeps every segment on so the unperturbed image is always scored.
func SampleMatrix(numSamples, numSegments int, seed uint64) [][]float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	data := make([][]float64, numSamples)
	for i := range data {
		row := make([]float64, numSegments)
		for j := range row {
			if i == 0 {
				row[j] = 1
			} else {
				row[j] = float64(rng.IntN(2))
			}
		}
		data[i] = row
	}
	return data
}

// Perturb returns a copy of base with every segment whose entry in active is zero
// painted with HideColor
func Perturb(base *image.RGBA, seg *Segmentation, active []float64) *image.RGBA {
	out := image.NewRGBA(base.Bounds())
	copy(out.Pix, base.Pix)

	b := base.Bounds()
	for y := 0; y < seg.Height; y++ {
		for x := 0; x < seg.Width; x++ {
			if active[seg.Label(x, y)] != 0 {
				continue
			}
			p := out.PixOffset(b.Min.X+x, b.Min.Y+y)
			out.Pix[p] = HideColor.R
			out.Pix[p+1] = HideColor.G
			out.Pix[p+2] = HideColor.B
			out.Pix[p+3] = HideColor.A
		}
	}
	return out
}
