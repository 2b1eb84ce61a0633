package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// pdfcpuConfig returns a pdfcpu configuration that never touches the
// user's config directory.
func pdfcpuConfig() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PDFCPU counts pages and extracts embedded images with pdfcpu.
type PDFCPU struct{}

var (
	_ PageCounter = PDFCPU{}
	_ ImageSource = PDFCPU{}
)

// PageCount validates the document structure and returns its page count.
func (PDFCPU) PageCount(ctx context.Context, data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), pdfcpuConfig())
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return n, nil
}

// Images returns embedded images ordered by page, then object number.
func (PDFCPU) Images(ctx context.Context, data []byte) ([]RawImage, error) {
	pages, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, pdfcpuConfig())
	if err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	var images []model.Image
	for _, page := range pages {
		for _, img := range page {
			images = append(images, img)
		}
	}
	slices.SortFunc(images, func(a, b model.Image) int {
		if a.PageNr != b.PageNr {
			return a.PageNr - b.PageNr
		}
		return a.ObjNr - b.ObjNr
	})

	result := make([]RawImage, 0, len(images))
	index := 0
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i > 0 && images[i-1].PageNr != img.PageNr {
			index = 0
		}
		raw, err := io.ReadAll(img)
		if err != nil {
			return nil, fmt.Errorf("read image %d on page %d: %w", img.ObjNr, img.PageNr, err)
		}
		index++
		result = append(result, RawImage{
			Page:     img.PageNr,
			Index:    index,
			Data:     raw,
			MimeType: mimeType(img.FileType),
		})
	}
	return result, nil
}

func mimeType(fileType string) string {
	switch fileType {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
