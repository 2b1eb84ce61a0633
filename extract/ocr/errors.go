package ocr

import "errors"

var (
	ErrRasterizerRequired = errors.New("rasterizer is required")
	ErrRecognizerRequired = errors.New("recognizer is required")
)
