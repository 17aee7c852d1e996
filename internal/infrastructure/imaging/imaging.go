// Package imaging содержит безопасные операции над изображениями,
// не требующие OpenCV: декодирование, ресайз и кроп с прижатием к границам.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
)

// jpegQuality — качество перекодирования кропов и ресайзов.
const jpegQuality = 90

// Decode превращает байты изображения (JPEG/PNG) в image.Image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Dimensions читает размеры изображения без полного декодирования.
func Dimensions(data []byte) (width, height int, err error) {
	if len(data) == 0 {
		return 0, 0, errors.New("empty image")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, fmt.Errorf("degenerate image dimensions %dx%d", cfg.Width, cfg.Height)
	}
	return cfg.Width, cfg.Height, nil
}

// EncodeJPEG кодирует изображение в JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Resize масштабирует изображение билинейной интерполяцией.
func Resize(img image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resize dimensions %dx%d", width, height)
	}
	src := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))

	scaleX := float64(src.Dx()) / float64(width)
	scaleY := float64(src.Dy()) / float64(height)

	for y := 0; y < height; y++ {
		sy := (float64(y)+0.5)*scaleY - 0.5
		y0, fy := splitCoord(sy, src.Dy())
		for x := 0; x < width; x++ {
			sx := (float64(x)+0.5)*scaleX - 0.5
			x0, fx := splitCoord(sx, src.Dx())

			c00 := rgbaAt(img, src.Min.X+x0, src.Min.Y+y0)
			c10 := rgbaAt(img, src.Min.X+clampInt(x0+1, 0, src.Dx()-1), src.Min.Y+y0)
			c01 := rgbaAt(img, src.Min.X+x0, src.Min.Y+clampInt(y0+1, 0, src.Dy()-1))
			c11 := rgbaAt(img, src.Min.X+clampInt(x0+1, 0, src.Dx()-1), src.Min.Y+clampInt(y0+1, 0, src.Dy()-1))

			dst.SetRGBA(x, y, lerp2(c00, c10, c01, c11, fx, fy))
		}
	}
	return dst, nil
}

// ResizeBytes декодирует, масштабирует и кодирует изображение обратно в JPEG.
func ResizeBytes(data []byte, width, height int) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	resized, err := Resize(img, width, height)
	if err != nil {
		return nil, err
	}
	return EncodeJPEG(resized)
}

func splitCoord(v float64, size int) (int, float64) {
	if v < 0 {
		return 0, 0
	}
	i := int(v)
	if i >= size-1 {
		return size - 1, 0
	}
	return i, v - float64(i)
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

func lerp2(c00, c10, c01, c11 color.RGBA, fx, fy float64) color.RGBA {
	mix := func(a, b uint8, f float64) float64 {
		return float64(a)*(1-f) + float64(b)*f
	}
	top := [4]float64{mix(c00.R, c10.R, fx), mix(c00.G, c10.G, fx), mix(c00.B, c10.B, fx), mix(c00.A, c10.A, fx)}
	bot := [4]float64{mix(c01.R, c11.R, fx), mix(c01.G, c11.G, fx), mix(c01.B, c11.B, fx), mix(c01.A, c11.A, fx)}
	out := color.RGBA{}
	vals := [4]*uint8{&out.R, &out.G, &out.B, &out.A}
	for i := range vals {
		v := top[i]*(1-fy) + bot[i]*fy
		*vals[i] = uint8(v + 0.5)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
