// Package explain attributes a classifier's prediction to image regions with a
// local linear surrogate fitted on superpixel perturbations, and renders the result.
package explain

import (
	"image"
	"math"
)

// Segmentation assigns every pixel to exactly one superpixel. Labels run from 0 to
// Count-1 without gaps.
type Segmentation struct {
	Width  int
	Height int
	Labels []int
	Count  int
}

// Label returns the segment of pixel (x, y)
func (s *Segmentation) Label(x, y int) int {
	return s.Labels[y*s.Width+x]
}

// Boundary reports whether pixel (x, y) touches a pixel of another segment
func (s *Segmentation) Boundary(x, y int) bool {
	l := s.Label(x, y)
	return (x+1 < s.Width && s.Label(x+1, y) != l) ||
		(y+1 < s.Height && s.Label(x, y+1) != l) ||
		(x > 0 && s.Label(x-1, y) != l) ||
		(y > 0 && s.Label(x, y-1) != l)
}

// Sizes returns the pixel count of every segment
func (s *Segmentation) Sizes() []int {
	sizes := make([]int, s.Count)
	for _, l := range s.Labels {
		sizes[l]++
	}
	return sizes
}

// Centroids returns the mean pixel position of every segment
func (s *Segmentation) Centroids() []image.Point {
	sx := make([]int, s.Count)
	sy := make([]int, s.Count)
	n := make([]int, s.Count)
	for i, l := range s.Labels {
		sx[l] += i % s.Width
		sy[l] += i / s.Width
		n[l]++
	}
	out := make([]image.Point, s.Count)
	for l := range out {
		if n[l] > 0 {
			out[l] = image.Pt(sx[l]/n[l], sy[l]/n[l])
		}
	}
	return out
}

// SLICOptions configures superpixel segmentation
type SLICOptions struct {
	Segments    int
	Compactness float64
	Sigma       float64
	Iterations  int
	// MinSizeFactor is the fraction of the nominal segment area below which a
	// disconnected fragment is merged into its neighbour
	MinSizeFactor float64
}

type cluster struct {
	l, a, b float64
	x, y    float64
}

// SLIC segments an image into roughly opts.Segments compact superpixels using
// k-means in CIELAB+xy space. The result is deterministic for a given image.
func SLIC(img *image.RGBA, opts SLICOptions) *Segmentation {
	if opts.Segments < 1 {
		opts.Segments = 1
	}
	if opts.Iterations <= 0 {
		opts.Iterations = 10
	}
	if opts.MinSizeFactor <= 0 {
		opts.MinSizeFactor = 0.5
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	n := w * h

	rgb := make([][3]float64, n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			rgb[y*w+x] = [3]float64{
				float64(img.Pix[p]) / 255,
				float64(img.Pix[p+1]) / 255,
				float64(img.Pix[p+2]) / 255,
			}
		}
	}
	if opts.Sigma > 0 {
		rgb = gaussianBlur(rgb, w, h, opts.Sigma)
	}
	lab := make([][3]float64, n)
	for i, c := range rgb {
		lab[i] = rgbToLab(c)
	}

	step := math.Sqrt(float64(n) / float64(opts.Segments))
	if step < 1 {
		step = 1
	}
	var centers []cluster
	for cy := step / 2; cy < float64(h); cy += step {
		for cx := step / 2; cx < float64(w); cx += step {
			c := lab[int(cy)*w+int(cx)]
			centers = append(centers, cluster{l: c[0], a: c[1], b: c[2], x: cx, y: cy})
		}
	}

	labels := make([]int, n)
	dist := make([]float64, n)
	spatialWeight := (opts.Compactness / step) * (opts.Compactness / step)
	window := int(math.Ceil(step))

	for iter := 0; iter < opts.Iterations; iter++ {
		for i := range dist {
			dist[i] = math.Inf(1)
			labels[i] = -1
		}
		for k, c := range centers {
			x0, x1 := max(0, int(c.x)-window), min(w-1, int(c.x)+window)
			y0, y1 := max(0, int(c.y)-window), min(h-1, int(c.y)+window)
			for y := y0; y <= y1; y++ {
				for x := x0; x <= x1; x++ {
					p := y*w + x
					v := lab[p]
					dl, da, db := v[0]-c.l, v[1]-c.a, v[2]-c.b
					dx, dy := float64(x)-c.x, float64(y)-c.y
					d := dl*dl + da*da + db*db + (dx*dx+dy*dy)*spatialWeight
					if d < dist[p] {
						dist[p] = d
						labels[p] = k
					}
				}
			}
		}

		sums := make([]cluster, len(centers))
		counts := make([]int, len(centers))
		for p, k := range labels {
			if k < 0 {
				continue
			}
			v := lab[p]
			sums[k].l += v[0]
			sums[k].a += v[1]
			sums[k].b += v[2]
			sums[k].x += float64(p % w)
			sums[k].y += float64(p / w)
			counts[k]++
		}
		for k := range centers {
			if counts[k] == 0 {
				continue
			}
			f := float64(counts[k])
			centers[k] = cluster{l: sums[k].l / f, a: sums[k].a / f, b: sums[k].b / f, x: sums[k].x / f, y: sums[k].y / f}
		}
	}

	// pixels outside every search window join the spatially nearest center
	for p, k := range labels {
		if k >= 0 {
			continue
		}
		x, y := float64(p%w), float64(p/w)
		best, bestD := 0, math.Inf(1)
		for j, c := range centers {
			if d := (x-c.x)*(x-c.x) + (y-c.y)*(y-c.y); d < bestD {
				best, bestD = j, d
			}
		}
		labels[p] = best
	}

	minSize := int(opts.MinSizeFactor * float64(n) / float64(opts.Segments))
	return enforceConnectivity(labels, w, h, minSize)
}

// enforceConnectivity relabels connected components sequentially and merges
// fragments smaller than minSize into the previously labelled neighbour
func enforceConnectivity(labels []int, w, h, minSize int) *Segmentation {
	n := w * h
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}

	next := 0
	queue := make([]int, 0, n)
	neighbours := func(p int, visit func(q int)) {
		x, y := p%w, p/w
		if x > 0 {
			visit(p - 1)
		}
		if x+1 < w {
			visit(p + 1)
		}
		if y > 0 {
			visit(p - w)
		}
		if y+1 < h {
			visit(p + w)
		}
	}

	for start := 0; start < n; start++ {
		if out[start] >= 0 {
			continue
		}
		adjacent := -1
		neighbours(start, func(q int) {
			if adjacent < 0 && out[q] >= 0 {
				adjacent = out[q]
			}
		})

		orig := labels[start]
		queue = append(queue[:0], start)
		out[start] = next
		for i := 0; i < len(queue); i++ {
			neighbours(queue[i], func(q int) {
				if out[q] < 0 && labels[q] == orig {
					out[q] = next
					queue = append(queue, q)
				}
			})
		}

		if len(queue) < minSize && adjacent >= 0 {
			for _, p := range queue {
				out[p] = adjacent
			}
			continue
		}
		next++
	}

	return &Segmentation{Width: w, Height: h, Labels: out, Count: next}
}

// gaussianBlur applies a separable gaussian filter with reflected borders
func gaussianBlur(src [][3]float64, w, h int, sigma float64) [][3]float64 {
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	reflect := func(i, n int) int {
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			}
			if i >= n {
				i = 2*n - i - 1
			}
		}
		return i
	}

	tmp := make([][3]float64, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [3]float64
			for k, kv := range kernel {
				s := src[y*w+reflect(x+k-radius, w)]
				acc[0] += s[0] * kv
				acc[1] += s[1] * kv
				acc[2] += s[2] * kv
			}
			tmp[y*w+x] = acc
		}
	}
	out := make([][3]float64, len(src))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc [3]float64
			for k, kv := range kernel {
				s := tmp[reflect(y+k-radius, h)*w+x]
				acc[0] += s[0] * kv
				acc[1] += s[1] * kv
				acc[2] += s[2] * kv
			}
			out[y*w+x] = acc
		}
	}
	return out
}

// rgbToLab converts sRGB in [0,1] to CIELAB under the D65 white point
func rgbToLab(c [3]float64) [3]float64 {
	lin := func(v float64) float64 {
		if v > 0.04045 {
			return math.Pow((v+0.055)/1.055, 2.4)
		}
		return v / 12.92
	}
	r, g, b := lin(c[0]), lin(c[1]), lin(c[2])

	x := (0.412453*r + 0.357580*g + 0.180423*b) / 0.95047
	y := 0.212671*r + 0.715160*g + 0.072169*b
	z := (0.019334*r + 0.119193*g + 0.950227*b) / 1.08883

	f := func(t float64) float64 {
		if t > 0.008856 {
			return math.Cbrt(t)
		}
		return 7.787*t + 16.0/116
	}
	fx, fy, fz := f(x), f(y), f(z)
	return [3]float64{116*fy - 16, 500 * (fx - fy), 200 * (fy - fz)}
}
