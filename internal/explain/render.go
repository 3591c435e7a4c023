package explain

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/mikey/teethanalyzer/internal/core"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	gridColumns  = 4
	gridRows     = 2
	titleHeight  = 20
	panelPadding = 6
	lineHeight   = 15

	combinedTop = 10
	singleTop   = 5
)

// Report carries everything needed to draw an explanation
type Report struct {
	Image      *image.RGBA
	Segments   *Segmentation
	Ranked     []core.SegmentWeight
	Statistics core.ExplanationStatistics
}

// Render draws the eight explanation panels in a 4x2 grid and encodes them as PNG
func Render(r *Report) ([]byte, error) {
	b := r.Image.Bounds()
	pw, ph := b.Dx(), b.Dy()
	cellW, cellH := pw+2*panelPadding, ph+titleHeight+2*panelPadding

	canvas := image.NewRGBA(image.Rect(0, 0, gridColumns*cellW, gridRows*cellH))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	weights := segmentWeights(r.Segments.Count, r.Ranked)
	top5 := Top(r.Ranked, singleTop)

	panels := []struct {
		title string
		img   *image.RGBA
	}{
		{"Original Image", r.Image},
		{"Superpixel Segmentation", boundaries(r.Image, r.Segments)},
		{fmt.Sprintf("Combined (Top %d)", combinedTop), overlay(r.Image, r.Segments, Top(r.Ranked, combinedTop), 0.5)},
		{fmt.Sprintf("Supporting (Top %d)", singleTop), overlay(r.Image, r.Segments, Supporting(r.Ranked, singleTop), 0.5)},
		{fmt.Sprintf("Against (Top %d)", singleTop), overlay(r.Image, r.Segments, Opposing(r.Ranked, singleTop), 0.5)},
		{"Importance Heatmap", heatmap(r.Image, r.Segments, weights)},
		{"Top 5 Regions", regions(r.Image, r.Segments, top5)},
		{"Statistics", statisticsPanel(pw, ph, r.Statistics)},
	}

	for i, p := range panels {
		x0 := (i % gridColumns) * cellW
		y0 := (i / gridColumns) * cellH
		drawText(canvas, x0+panelPadding, y0+panelPadding+13, p.title, color.Black)
		origin := image.Pt(x0+panelPadding, y0+panelPadding+titleHeight)
		draw.Draw(canvas, image.Rectangle{Min: origin, Max: origin.Add(image.Pt(pw, ph))}, p.img, p.img.Bounds().Min, draw.Src)
	}

	// legend drawn over the top regions panel (column 2, row 1)
	legendX := 2*cellW + panelPadding + 4
	legendY := cellH + panelPadding + titleHeight + lineHeight
	for i, sw := range top5 {
		drawText(canvas, legendX, legendY+i*lineHeight,
			fmt.Sprintf("Region %d: %+.3f", i+1, sw.Weight), Set1[i%len(Set1)])
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode explanation: %w", err)
	}
	return buf.Bytes(), nil
}

func segmentWeights(count int, ranked []core.SegmentWeight) []float64 {
	weights := make([]float64, count)
	for _, sw := range ranked {
		weights[sw.Segment] = sw.Weight
	}
	return weights
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	return out
}

// paint recolours every pixel for which pick returns ok
func paint(base *image.RGBA, seg *Segmentation, pick func(x, y int) (color.RGBA, float64, bool)) *image.RGBA {
	out := cloneRGBA(base)
	b := out.Bounds()
	for y := 0; y < seg.Height; y++ {
		for x := 0; x < seg.Width; x++ {
			c, f, ok := pick(x, y)
			if !ok {
				continue
			}
			px := b.Min.X + x
			py := b.Min.Y + y
			out.SetRGBA(px, py, blend(out.RGBAAt(px, py), c, f))
		}
	}
	return out
}

func boundaries(base *image.RGBA, seg *Segmentation) *image.RGBA {
	return paint(base, seg, func(x, y int) (color.RGBA, float64, bool) {
		return BoundaryColor, 1, seg.Boundary(x, y)
	})
}

// overlay tints the selected segments green when they support the class and red otherwise
func overlay(base *image.RGBA, seg *Segmentation, selected []core.SegmentWeight, alpha float64) *image.RGBA {
	tint := make(map[int]color.RGBA, len(selected))
	for _, sw := range selected {
		if sw.Weight >= 0 {
			tint[sw.Segment] = SupportColor
		} else {
			tint[sw.Segment] = AgainstColor
		}
	}
	return paint(base, seg, func(x, y int) (color.RGBA, float64, bool) {
		l := seg.Label(x, y)
		c, ok := tint[l]
		if ok && seg.Boundary(x, y) {
			return c, 1, true
		}
		return c, alpha, ok
	})
}

func heatmap(base *image.RGBA, seg *Segmentation, weights []float64) *image.RGBA {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, w := range weights {
		lo, hi = math.Min(lo, w), math.Max(hi, w)
	}
	span := hi - lo
	return paint(base, seg, func(x, y int) (color.RGBA, float64, bool) {
		t := 0.5
		if span > 0 {
			t = (weights[seg.Label(x, y)] - lo) / span
		}
		return RdYlBuR.At(t), 0.5, true
	})
}

func regions(base *image.RGBA, seg *Segmentation, top []core.SegmentWeight) *image.RGBA {
	rank := make(map[int]int, len(top))
	for i, sw := range top {
		rank[sw.Segment] = i
	}
	return paint(base, seg, func(x, y int) (color.RGBA, float64, bool) {
		i, ok := rank[seg.Label(x, y)]
		return Set1[i%len(Set1)], 0.6, ok
	})
}

func statisticsPanel(w, h int, s core.ExplanationStatistics) *image.RGBA {
	panel := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(panel, panel.Bounds(), image.NewUniform(color.RGBA{0xf5, 0xf5, 0xf5, 0xff}), image.Point{}, draw.Src)

	lines := []string{
		"Disease: " + s.Disease,
		fmt.Sprintf("Regions: %d", s.TotalRegions),
		"",
		fmt.Sprintf("Supporting: %d", s.SupportCount),
		fmt.Sprintf("  mean %.4f", s.MeanSupport),
		fmt.Sprintf("  max  %.4f", s.MaxSupport),
		fmt.Sprintf("  sum  %.4f", s.TotalSupport),
		fmt.Sprintf("Against: %d", s.AgainstCount),
		fmt.Sprintf("  mean %.4f", s.MeanAgainst),
		fmt.Sprintf("  max  %.4f", s.MaxAgainst),
		fmt.Sprintf("  sum  %.4f", s.TotalAgainst),
		"",
		fmt.Sprintf("Net: %+.4f", s.NetSupport),
		s.AssessmentLabel,
		fmt.Sprintf("Fit R2: %.3f", s.SurrogateScore),
	}
	for i, line := range lines {
		y := 4 + (i+1)*lineHeight
		if y > h {
			break
		}
		drawText(panel, 6, y, line, color.Black)
	}
	return panel
}

func drawText(dst draw.Image, x, y int, text string, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
