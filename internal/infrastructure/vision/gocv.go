//go:build gocv
// +build gocv

package vision

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// decodeGray превращает байты изображения в grayscale gocv.Mat.
// Слишком маленькие изображения отклоняются до запуска детекторов.
// На ошибочных ветках возвращается нулевой Mat без нативной памяти,
// закрывать его вызывающему не нужно.
func decodeGray(imageData []byte, minSide int) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(imageData, gocv.IMReadGrayScale)
	if err != nil {
		return gocv.Mat{}, errors.New("failed to decode image")
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, errors.New("failed to decode image")
	}
	if mat.Cols() < minSide || mat.Rows() < minSide {
		cols, rows := mat.Cols(), mat.Rows()
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("image is too small (%dx%d)", cols, rows)
	}
	return mat, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
