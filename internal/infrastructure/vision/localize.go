package vision

import (
	"image"
	"math"
)

// gradientMap строит карту аномальности: величина градиента яркости по
// центральным разностям, нормированная в [0,1]. Края изображения нулевые.
func gradientMap(pixels []byte, width, height int) []float64 {
	grad := make([]float64, width*height)
	if width < 3 || height < 3 {
		return grad
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			gx := float64(pixels[y*width+x+1]) - float64(pixels[y*width+x-1])
			gy := float64(pixels[(y+1)*width+x]) - float64(pixels[(y-1)*width+x])
			g := math.Hypot(gx, gy)
			grad[y*width+x] = g
			if g < minV {
				minV = g
			}
			if g > maxV {
				maxV = g
			}
		}
	}

	scale := maxV - minV + 1e-6
	for i, g := range grad {
		grad[i] = (g - minV) / scale
	}
	return grad
}

// anomalyMask бинаризует карту аномальности: 255 там, где значение выше порога.
func anomalyMask(gradMap []float64, threshold float64) []byte {
	mask := make([]byte, len(gradMap))
	for i, v := range gradMap {
		if v > threshold {
			mask[i] = 255
		}
	}
	return mask
}

// meanInRect возвращает среднее значение карты внутри прямоугольника.
func meanInRect(gradMap []float64, width int, rect image.Rectangle) float64 {
	if rect.Empty() {
		return 0
	}
	var sum float64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			sum += gradMap[y*width+x]
		}
	}
	return sum / float64(rect.Dx()*rect.Dy())
}
