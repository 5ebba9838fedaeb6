package ocr

import (
	"errors"
	"fmt"
)

// Sentinel errors for OCR failures. Callers match these with errors.Is.
var (
	// ErrFileTooLarge is returned when the document exceeds the 20MB
	// synchronous processing limit.
	ErrFileTooLarge = errors.New("document exceeds the maximum size limit (20MB)")

	// ErrInvalidPDF is returned when the data is not a valid PDF.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrProcessingFailed is returned when the Vision API rejects or
	// fails to process the document.
	ErrProcessingFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when no Google Cloud
	// credentials can be found in the environment.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")

	// ErrTooManyPages is returned when a PDF exceeds the 5-page limit
	// for synchronous processing.
	ErrTooManyPages = errors.New("PDF has too many pages (maximum 5 for synchronous processing)")

	// ErrEmptyDocument is returned when no readable text was detected.
	ErrEmptyDocument = errors.New("document contains no readable text")
)

// Error wraps a failure with the operation that produced it.
type Error struct {
	// Op is the operation that failed (e.g. "ProcessPDF").
	Op string

	// Err is the underlying error.
	Err error

	// Details gives additional context about the failure.
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// wrapError wraps err as an *Error unless it already is one.
func wrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var ocrErr *Error
	if errors.As(err, &ocrErr) {
		return err
	}
	return &Error{Op: op, Err: err, Details: details}
}
