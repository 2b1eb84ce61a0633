package extract

import (
	"context"
	"encoding/hex"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/docscope/core"
)

// extractImages collects embedded images. Failures are logged and yield
// fewer images; they never fail the extraction.
func (e *Extractor) extractImages(ctx context.Context, data []byte) []core.Image {
	raw, err := e.images.Images(ctx, data)
	if err != nil {
		e.logger.Warn("image extraction failed", "err", err)
		return nil
	}

	images := make([]core.Image, 0, len(raw))
	seen := make(map[string]bool)
	for _, img := range raw {
		sum := blake2b.Sum256(img.Data)
		hash := hex.EncodeToString(sum[:])
		result := core.Image{Page: img.Page, Index: img.Index, Hash: hash}

		// repeated logos and backgrounds only need one description
		if e.analyzer != nil && !seen[hash] {
			seen[hash] = true
			analysis, err := e.analyzer.AnalyzeImage(ctx, img.Data, img.MimeType)
			if err != nil {
				e.logger.Warn("image analysis failed", "page", img.Page, "index", img.Index, "err", err)
			}
			result.Analysis = analysis
		}
		images = append(images, result)
	}
	return images
}
