// Package ocr recognizes text on scanned documents.
//
// Engine renders each page through a Rasterizer and recognizes it with a
// Recognizer. Pages are processed in sequential batches; the pages of one
// batch run concurrently on an ants pool, each under its own timeout. The
// fitz and tesseract subpackages provide the production adapters.
package ocr
