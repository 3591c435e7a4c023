package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// ImageNet channel statistics used by the hybrid model
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float32{0.229, 0.224, 0.225}
)

// Spec describes how an image is prepared for one model
type Spec struct {
	Size      int
	Scale     float32
	Mean      [3]float32
	Std       [3]float32
	Normalize bool
	Kernel    xdraw.Interpolator
}

// NeuralSpec is the 224x224, [0,1] scaled preparation of the neural classifier
func NeuralSpec(size int) Spec {
	return Spec{Size: size, Scale: 1.0 / 255, Kernel: xdraw.CatmullRom}
}

// HybridSpec is the ImageNet normalised preparation of the hybrid classifier
func HybridSpec(size int) Spec {
	return Spec{
		Size:      size,
		Scale:     1.0 / 255,
		Mean:      ImageNetMean,
		Std:       ImageNetStd,
		Normalize: true,
		Kernel:    xdraw.BiLinear,
	}
}

// Tensor is a height x width x 3 float tensor in row-major order
type Tensor struct {
	Height int
	Width  int
	Data   []float32
}

// At returns the value of channel c at pixel (x, y)
func (t *Tensor) At(x, y, c int) float32 {
	return t.Data[(y*t.Width+x)*3+c]
}

// Nested returns the tensor as [height][width][channel] for JSON encoding
func (t *Tensor) Nested() [][][]float32 {
	rows := make([][][]float32, t.Height)
	for y := 0; y < t.Height; y++ {
		row := make([][]float32, t.Width)
		for x := 0; x < t.Width; x++ {
			i := (y*t.Width + x) * 3
			row[x] = t.Data[i : i+3 : i+3]
		}
		rows[y] = row
	}
	return rows
}

// ToRGBA converts any image to opaque RGBA with its origin at (0, 0). Transparent
// pixels are composited onto black.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// Resize scales img to a size x size RGBA image
func Resize(img image.Image, size int, kernel xdraw.Interpolator) *image.RGBA {
	src := ToRGBA(img)
	if src.Bounds().Dx() == size && src.Bounds().Dy() == size {
		return src
	}
	if kernel == nil {
		kernel = xdraw.BiLinear
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// Preprocess resizes and scales an image according to spec
func Preprocess(img image.Image, spec Spec) (*Tensor, error) {
	if spec.Size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", spec.Size)
	}
	return FromRGBA(Resize(img, spec.Size, spec.Kernel), spec), nil
}

// FromRGBA converts an already sized RGBA image into a tensor without resizing
func FromRGBA(rgba *image.RGBA, spec Spec) *Tensor {
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()
	t := &Tensor{Height: h, Width: w, Data: make([]float32, w*h*3)}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := rgba.PixOffset(b.Min.X+x, b.Min.Y+y)
			for c := 0; c < 3; c++ {
				v := float32(rgba.Pix[p+c]) * spec.Scale
				if spec.Normalize {
					v = (v - spec.Mean[c]) / spec.Std[c]
				}
				t.Data[(y*w+x)*3+c] = v
			}
		}
	}
	return t
}
