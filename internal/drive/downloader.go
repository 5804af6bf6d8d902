package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DownloadOptions controls how dataset files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader pulls dataset files from a Drive folder into the local data
// directory, normalizing everything to CSV.
type Downloader struct {
	service *Service
}

// NewDownloader creates a new Downloader.
func NewDownloader(s *Service) *Downloader {
	return &Downloader{service: s}
}

// DownloadFolderCSV downloads every CSV and XLSX file in the folder and
// returns the local CSV paths. XLSX files are downloaded to a temporary
// .xlsx, the first sheet is converted to CSV, and the temporary file removed.
func (d *Downloader) DownloadFolderCSV(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.service.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	var localPaths []string
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ext := strings.ToLower(filepath.Ext(f.Name))
		switch ext {
		case ".csv":
			localPath := filepath.Join(opts.DownloadDir, f.Name)
			if err := d.downloadTo(ctx, f.ID, localPath); err != nil {
				return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
			}
			localPaths = append(localPaths, localPath)

		case ".xlsx":
			tmpPath := filepath.Join(opts.DownloadDir, f.Name)
			if err := d.downloadTo(ctx, f.ID, tmpPath); err != nil {
				return nil, fmt.Errorf("failed to download %s: %w", f.Name, err)
			}

			csvPath := filepath.Join(opts.DownloadDir, strings.TrimSuffix(f.Name, ext)+".csv")
			if err := convertXLSXToCSV(tmpPath, csvPath); err != nil {
				return nil, fmt.Errorf("failed to convert %s: %w", f.Name, err)
			}
			_ = os.Remove(tmpPath)
			localPaths = append(localPaths, csvPath)
		}
	}

	return localPaths, nil
}

func (d *Downloader) downloadTo(ctx context.Context, fileID, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if err := d.service.DownloadFile(ctx, fileID, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
