package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sort"

	_ "image/jpeg"

	_ "golang.org/x/image/tiff"
)

// binarizeThreshold separates ink from paper after grayscale
// conversion. Pixels at or above it become white.
const binarizeThreshold = 180

// Preprocess prepares a scanned page for tesseract: grayscale, a 3x3
// median filter to knock out salt-and-pepper scan noise, then a fixed
// threshold binarization.
func Preprocess(img image.Image) *image.Gray {
	gray := toGray(img)
	gray = median3(gray)
	binarize(gray)
	return gray
}

// PreprocessPNG decodes a page image, preprocesses it, and re-encodes
// it as PNG for the recognition call.
func PreprocessPNG(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode page image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, Preprocess(img)); err != nil {
		return nil, fmt.Errorf("encode preprocessed page: %w", err)
	}
	return buf.Bytes(), nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		cloned := image.NewGray(g.Bounds())
		copy(cloned.Pix, g.Pix)
		return cloned
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// median3 applies a 3x3 median filter. Border pixels keep their value.
func median3(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	copy(dst.Pix, src.Pix)

	var window [9]byte
	for y := bounds.Min.Y + 1; y < bounds.Max.Y-1; y++ {
		for x := bounds.Min.X + 1; x < bounds.Max.X-1; x++ {
			i := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window[i] = src.GrayAt(x+dx, y+dy).Y
					i++
				}
			}
			w := window
			sort.Slice(w[:], func(a, b int) bool { return w[a] < w[b] })
			dst.SetGray(x, y, color.Gray{Y: w[4]})
		}
	}
	return dst
}

func binarize(img *image.Gray) {
	for i, v := range img.Pix {
		if v >= binarizeThreshold {
			img.Pix[i] = 255
		} else {
			img.Pix[i] = 0
		}
	}
}
