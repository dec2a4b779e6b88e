package coverart

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// JPEGQuality is used when re-encoding cropped images.
const JPEGQuality = 90

// SquareRect returns the centered square inside b. Landscape images keep their
// full height; portrait images keep their full width.
func SquareRect(b image.Rectangle) image.Rectangle {
	w, h := b.Dx(), b.Dy()
	if w >= h {
		x := b.Min.X + (w-h)/2
		return image.Rect(x, b.Min.Y, x+h, b.Max.Y)
	}
	y := b.Min.Y + (h-w)/2
	return image.Rect(b.Min.X, y, b.Max.X, y+w)
}

// CropToSquare crops img to its centered square and encodes it as JPEG.
func CropToSquare(img image.Image) ([]byte, error) {
	sr := SquareRect(img.Bounds())
	if sr.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	dst := image.NewRGBA(image.Rect(0, 0, sr.Dx(), sr.Dy()))
	draw.Copy(dst, image.Point{}, img, sr, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
