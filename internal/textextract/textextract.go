// Package textextract turns invoice documents into raw text.
//
// Native PDFs are read through their embedded text layer, which is free
// and exact. Scanned PDFs and images fall back to the OCR service when
// one is configured. Callers receive the text plus the method that
// produced it; an empty text result is a valid "nothing found", not an
// error.
package textextract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"invoicer/internal/logger"
	"invoicer/internal/ocr"
)

// Method identifies how text was obtained from a document.
type Method string

const (
	MethodNative Method = "native" // PDF embedded text layer
	MethodOCR    Method = "ocr"    // Vision OCR
	MethodText   Method = "text"   // caller supplied pre-extracted text
)

// MinNativeTextLength is the minimum usable text-layer size; anything
// shorter means the PDF is effectively scanned and needs OCR.
const MinNativeTextLength = 50

var supportedExtensions = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true,
	".png": true, ".tiff": true, ".bmp": true,
}

// Extractor picks the best extraction method per document.
type Extractor struct {
	ocr ocr.Service // nil disables the OCR fallback
	log zerolog.Logger
}

// New builds an extractor. A nil OCR service limits it to native PDFs.
func New(ocrService ocr.Service) *Extractor {
	return &Extractor{
		ocr: ocrService,
		log: logger.WithComponent("textextract"),
	}
}

// IsSupported reports whether the filename has a processable extension.
func IsSupported(filename string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// ValidateFile checks a file before processing: it must exist, be
// non-empty, and a .pdf must start with the PDF magic header.
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file not found")
		}
		return fmt.Errorf("file not readable: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty (0 bytes)")
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		header := make([]byte, 5)
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("cannot read file: %w", err)
		}
		defer f.Close()
		if _, err := f.Read(header); err != nil || !bytes.HasPrefix(header, []byte("%PDF-")) {
			return fmt.Errorf("not a valid PDF file (missing PDF header)")
		}
	}
	return nil
}

// ExtractFromPath extracts text from a document on disk.
func (e *Extractor) ExtractFromPath(ctx context.Context, path string) (string, Method, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case ext == ".pdf":
		text := e.nativePDFText(path)
		if len(strings.TrimSpace(text)) >= MinNativeTextLength {
			e.log.Debug().Str("file", filepath.Base(path)).Int("chars", len(text)).Msg("Native text layer used")
			return text, MethodNative, nil
		}
		if e.ocr == nil {
			// No OCR configured: return whatever the text layer gave,
			// possibly nothing.
			return text, MethodNative, nil
		}
		e.log.Info().Str("file", filepath.Base(path)).Msg("Falling back to OCR for scanned PDF")
		return e.ocrFile(ctx, path, true)

	case supportedExtensions[ext]:
		if e.ocr == nil {
			return "", MethodOCR, fmt.Errorf("textextract: OCR service required for image %s", filepath.Base(path))
		}
		return e.ocrFile(ctx, path, false)

	default:
		return "", "", fmt.Errorf("textextract: unsupported file format %q", ext)
	}
}

func (e *Extractor) ocrFile(ctx context.Context, path string, isPDF bool) (string, Method, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", MethodOCR, fmt.Errorf("textextract: %w", err)
	}
	defer f.Close()

	var text string
	if isPDF {
		text, err = e.ocr.ProcessPDF(ctx, f)
	} else {
		text, err = e.ocr.ProcessImage(ctx, f)
	}
	if err != nil {
		return "", MethodOCR, err
	}
	return text, MethodOCR, nil
}

// nativePDFText reads the PDF text layer. The PDF library panics on some
// malformed files, so failures of any kind collapse to "no text" and the
// OCR fallback takes over.
func (e *Extractor) nativePDFText(path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn().Str("file", filepath.Base(path)).Interface("panic", r).Msg("PDF text layer read crashed")
			text = ""
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		e.log.Debug().Err(err).Str("file", filepath.Base(path)).Msg("PDF open failed")
		return ""
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if content != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(content)
		}
	}
	return sb.String()
}
