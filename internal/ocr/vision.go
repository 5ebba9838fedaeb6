package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

const (
	// MaxFileSizeBytes is the Vision API limit for synchronous requests.
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the page limit for synchronous PDF processing.
	MaxPagesSync = 5
)

// VisionService implements Service on top of Google Cloud Vision.
type VisionService struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionService creates an OCR service with credentials discovered
// from the environment.
func NewVisionService(ctx context.Context) (*VisionService, error) {
	const op = "NewVisionService"

	var client *vision.ImageAnnotatorClient
	var err error

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, wrapError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, wrapError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, wrapError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionService{client: client}, nil
}

// NewVisionServiceWithClient wraps an existing client, mainly for tests.
func NewVisionServiceWithClient(client *vision.ImageAnnotatorClient) *VisionService {
	return &VisionService{client: client}
}

// ProcessPDF extracts text from a scanned PDF.
func (s *VisionService) ProcessPDF(ctx context.Context, pdfData io.Reader) (string, error) {
	result, err := s.ProcessPDFWithMetadata(ctx, pdfData)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ProcessPDFWithMetadata extracts text from a scanned PDF with
// confidence and language metadata.
func (s *VisionService) ProcessPDFWithMetadata(ctx context.Context, pdfData io.Reader) (*Result, error) {
	const op = "ProcessPDFWithMetadata"
	startTime := time.Now()

	pdfBytes, err := io.ReadAll(pdfData)
	if err != nil {
		return nil, wrapError(op, err, "failed to read PDF data")
	}
	if len(pdfBytes) > MaxFileSizeBytes {
		return nil, wrapError(op, ErrFileTooLarge, fmt.Sprintf("file size: %d bytes", len(pdfBytes)))
	}
	if !bytes.HasPrefix(pdfBytes, []byte("%PDF")) {
		return nil, wrapError(op, ErrInvalidPDF, "missing PDF header")
	}

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  pdfBytes,
					MimeType: "application/pdf",
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := s.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, wrapError(op, ErrProcessingFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, wrapError(op, ErrProcessingFailed, "no response from Vision API")
	}
	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, wrapError(op, ErrProcessingFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}

	result, err := collectFileText(fileResp)
	if err != nil {
		return nil, wrapError(op, err, "failed to process Vision API response")
	}
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)
	return result, nil
}

// ProcessImage extracts text from a single raster image using document
// text detection.
func (s *VisionService) ProcessImage(ctx context.Context, imageData io.Reader) (string, error) {
	const op = "ProcessImage"

	imgBytes, err := io.ReadAll(imageData)
	if err != nil {
		return "", wrapError(op, err, "failed to read image data")
	}
	if len(imgBytes) > MaxFileSizeBytes {
		return "", wrapError(op, ErrFileTooLarge, fmt.Sprintf("file size: %d bytes", len(imgBytes)))
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imgBytes},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := s.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", wrapError(op, ErrProcessingFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return "", wrapError(op, ErrProcessingFailed, "no response from Vision API")
	}
	imgResp := resp.Responses[0]
	if imgResp.Error != nil {
		return "", wrapError(op, ErrProcessingFailed, fmt.Sprintf("Vision API error: %s", imgResp.Error.Message))
	}
	if imgResp.FullTextAnnotation == nil || strings.TrimSpace(imgResp.FullTextAnnotation.Text) == "" {
		return "", wrapError(op, ErrEmptyDocument, "")
	}
	return imgResp.FullTextAnnotation.Text, nil
}

// collectFileText aggregates per-page annotations into a single Result.
func collectFileText(fileResp *visionpb.AnnotateFileResponse) (*Result, error) {
	if len(fileResp.Responses) == 0 {
		return nil, ErrEmptyDocument
	}

	pageCount := len(fileResp.Responses)
	if pageCount > MaxPagesSync {
		return nil, wrapError("collectFileText", ErrTooManyPages, fmt.Sprintf("document has %d pages", pageCount))
	}

	var allText strings.Builder
	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)

	for pageIdx, page := range fileResp.Responses {
		if page.Error != nil {
			return nil, fmt.Errorf("error processing page %d: %s", pageIdx+1, page.Error.Message)
		}
		if page.FullTextAnnotation == nil {
			continue
		}

		if pageIdx > 0 {
			fmt.Fprintf(&allText, "\n\n--- Page %d ---\n\n", pageIdx+1)
		}
		allText.WriteString(page.FullTextAnnotation.Text)

		for _, annotation := range page.TextAnnotations {
			if annotation.Confidence > 0 {
				confidenceSum += annotation.Confidence
				confidenceCount++
			}
		}
		for _, pageInfo := range page.FullTextAnnotation.Pages {
			for _, block := range pageInfo.Blocks {
				for _, paragraph := range block.Paragraphs {
					for _, word := range paragraph.Words {
						for _, symbol := range word.Symbols {
							if symbol.Property == nil {
								continue
							}
							for _, lang := range symbol.Property.DetectedLanguages {
								if lang.LanguageCode != "" {
									languageSet[lang.LanguageCode] = true
								}
							}
						}
					}
				}
			}
		}
	}

	var avgConfidence float32
	if confidenceCount > 0 {
		avgConfidence = confidenceSum / float32(confidenceCount)
	}
	var languages []string
	for lang := range languageSet {
		languages = append(languages, lang)
	}

	text := allText.String()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	return &Result{
		Text:          text,
		PageCount:     pageCount,
		Confidence:    avgConfidence,
		LanguageCodes: languages,
	}, nil
}

// Close releases the underlying Vision client.
func (s *VisionService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
