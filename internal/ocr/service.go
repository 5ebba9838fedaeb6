// Package ocr extracts text from scanned invoices using the Google
// Cloud Vision API.
//
// Scanned PDFs go through document text detection, which handles
// multi-page files as inline base64 content; single images (photos of
// receipts, screenshots) go through the image annotation path. Both
// return plain text in reading order.
//
// Credentials come from GOOGLE_CREDENTIALS (inline JSON),
// GOOGLE_APPLICATION_CREDENTIALS (file path), or application default
// credentials, in that order.
//
// Vision API limits for synchronous processing:
//   - Maximum file size: 20MB
//   - Maximum pages: 5 per PDF
package ocr

import (
	"context"
	"io"
	"time"
)

// Service is the OCR backend used by the text extraction layer.
type Service interface {
	// ProcessPDF extracts text from a scanned PDF, concatenating all
	// pages in reading order.
	ProcessPDF(ctx context.Context, pdfData io.Reader) (string, error)

	// ProcessImage extracts text from a single raster image.
	ProcessImage(ctx context.Context, imageData io.Reader) (string, error)

	// ProcessPDFWithMetadata extracts text from a scanned PDF along
	// with confidence and language metadata.
	ProcessPDFWithMetadata(ctx context.Context, pdfData io.Reader) (*Result, error)
}

// Result carries OCR output plus processing metadata.
type Result struct {
	// Text is the extracted content from all pages in reading order.
	Text string `json:"text"`

	// PageCount is the number of pages processed.
	PageCount int `json:"page_count"`

	// Confidence is the average detection confidence (0.0 to 1.0).
	Confidence float32 `json:"confidence"`

	// ProcessedAt is when processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// LanguageCodes lists languages detected in the document.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessingDuration is how long the OCR call took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}
