package imaging

import (
	"image"
	"image/draw"

	"defect-pipeline/internal/domain/entity"
)

// ClampBox прижимает рамку к границам изображения. Рамка никогда не
// вырождается: при imageWidth, imageHeight > 0 итоговые w и h >= 1.
func ClampBox(x, y, w, h, imageWidth, imageHeight int) (int, int, int, int) {
	x = clampInt(x, 0, imageWidth-1)
	y = clampInt(y, 0, imageHeight-1)
	w = clampInt(w, 1, imageWidth-x)
	h = clampInt(h, 1, imageHeight-y)
	return x, y, w, h
}

// CropRegion вырезает область дефекта с расширением на paddingPercent
// процентов с каждой стороны и прижатием к границам изображения.
// Единственное место, где координаты пикселей пересекают границу доверия,
// поэтому вход проверяется целиком. Если корректный кроп невозможен,
// возвращается исходное изображение и fellBack=true.
func CropRegion(data []byte, region entity.DefectRegion, paddingPercent float64) (crop []byte, fellBack bool, err error) {
	img, err := Decode(data)
	if err != nil {
		return nil, false, err
	}

	bounds := img.Bounds()
	imageWidth, imageHeight := bounds.Dx(), bounds.Dy()
	if imageWidth <= 0 || imageHeight <= 0 {
		return data, true, nil
	}

	if region.W <= 0 || region.H <= 0 || region.X >= imageWidth || region.Y >= imageHeight {
		// Рамка целиком вне изображения или пустая: кропать нечего.
		return data, true, nil
	}

	padX := int(float64(region.W) * paddingPercent / 100.0)
	padY := int(float64(region.H) * paddingPercent / 100.0)

	x, y, w, h := ClampBox(region.X-padX, region.Y-padY, region.W+2*padX, region.H+2*padY, imageWidth, imageHeight)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, image.Pt(bounds.Min.X+x, bounds.Min.Y+y), draw.Src)

	encoded, err := EncodeJPEG(dst)
	if err != nil {
		return data, true, nil
	}
	return encoded, false, nil
}
