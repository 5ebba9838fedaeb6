// Package drive connects the invoice pipeline to Google Drive folders.
package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"invoicer/internal/logger"
)

// invoiceMIMETypes filters folder listings to processable documents.
var invoiceMIMETypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/tiff",
	"image/bmp",
}

var folderURLRe = regexp.MustCompile(`/folders/([a-zA-Z0-9-_]+)`)

// File is one processable document in a Drive folder.
type File struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string
	Size         int64
}

// Service handles Google Drive operations.
type Service struct {
	driveService *drive.Service
	log          zerolog.Logger
}

// NewService creates a Drive service with credentials from the
// environment (GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS
// inline JSON).
func NewService(ctx context.Context) (*Service, error) {
	const op = "NewService"

	log := logger.WithComponent("drive")

	var creds []byte
	var err error
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err = os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	} else if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		creds = []byte(credsJSON)
	} else {
		return nil, fmt.Errorf("%s: neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set", op)
	}

	config, err := google.JWTConfigFromJSON(creds, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	client := config.Client(ctx)
	driveService, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create drive service: %w", op, err)
	}

	return &Service{
		driveService: driveService,
		log:          log,
	}, nil
}

// ResolveFolderID accepts either a bare folder ID or a full Drive
// folder URL and returns the ID.
func ResolveFolderID(folder string) string {
	if m := folderURLRe.FindStringSubmatch(folder); m != nil {
		return m[1]
	}
	return folder
}

// ListInvoices returns the processable documents in a folder, newest
// first. Trashed files are excluded.
func (s *Service) ListInvoices(ctx context.Context, folderID string) ([]File, error) {
	const op = "ListInvoices"

	var mimeClauses []string
	for _, m := range invoiceMIMETypes {
		mimeClauses = append(mimeClauses, fmt.Sprintf("mimeType='%s'", m))
	}
	query := fmt.Sprintf("'%s' in parents and trashed=false and (%s)",
		folderID, strings.Join(mimeClauses, " or "))

	var files []File
	pageToken := ""
	for {
		call := s.driveService.Files.List().
			Q(query).
			OrderBy("modifiedTime desc").
			Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
			PageSize(100).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to list folder %s: %w", op, folderID, err)
		}
		for _, f := range resp.Files {
			files = append(files, File{
				ID:           f.Id,
				Name:         f.Name,
				MimeType:     f.MimeType,
				ModifiedTime: f.ModifiedTime,
				Size:         f.Size,
			})
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	s.log.Debug().
		Str("folder_id", folderID).
		Int("files", len(files)).
		Msg("Listed folder contents")

	return files, nil
}

// GetFile returns name and metadata for a single file.
func (s *Service) GetFile(ctx context.Context, fileID string) (*File, error) {
	const op = "GetFile"

	f, err := s.driveService.Files.Get(fileID).
		Fields("id, name, mimeType, modifiedTime, size").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get file %s: %w", op, fileID, err)
	}
	return &File{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		ModifiedTime: f.ModifiedTime,
		Size:         f.Size,
	}, nil
}

// Download fetches a file's content into dir, keeping its Drive name.
// Returns the local path.
func (s *Service) Download(ctx context.Context, fileID, dir string) (string, error) {
	const op = "Download"

	meta, err := s.GetFile(ctx, fileID)
	if err != nil {
		return "", err
	}

	resp, err := s.driveService.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("%s: failed to download file %s: %w", op, fileID, err)
	}
	defer resp.Body.Close()

	localPath := filepath.Join(dir, meta.Name)
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("%s: failed to create %s: %w", op, localPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("%s: failed to write %s: %w", op, localPath, err)
	}

	s.log.Debug().
		Str("file_id", fileID).
		Str("name", meta.Name).
		Msg("Downloaded file")

	return localPath, nil
}

// Rename changes a file's display name in place.
func (s *Service) Rename(ctx context.Context, fileID, newName string) error {
	const op = "Rename"

	_, err := s.driveService.Files.Update(fileID, &drive.File{Name: newName}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to rename file %s: %w", op, fileID, err)
	}

	s.log.Info().
		Str("file_id", fileID).
		Str("new_name", newName).
		Msg("Renamed file")

	return nil
}

// Move reparents a file into targetFolderID, removing its current
// parents.
func (s *Service) Move(ctx context.Context, fileID, targetFolderID string) error {
	const op = "Move"

	f, err := s.driveService.Files.Get(fileID).Fields("parents").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get parents of %s: %w", op, fileID, err)
	}

	_, err = s.driveService.Files.Update(fileID, &drive.File{}).
		AddParents(targetFolderID).
		RemoveParents(strings.Join(f.Parents, ",")).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to move file %s: %w", op, fileID, err)
	}

	s.log.Info().
		Str("file_id", fileID).
		Str("target_folder", targetFolderID).
		Msg("Moved file")

	return nil
}
