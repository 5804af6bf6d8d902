package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andresuchdata/stocksim/internal/dataset"
)

// StageService downloads a dataset file from Drive, validates it against the
// canonical retail inventory schema, and stages it into the local data
// directory where the API and pipeline load from.
type StageService struct {
	drive   *Service
	dataDir string
}

// NewStageService creates a new StageService writing into dataDir.
func NewStageService(driveService *Service, dataDir string) *StageService {
	return &StageService{
		drive:   driveService,
		dataDir: dataDir,
	}
}

// StageResult reports where a staged file landed and what it contained.
type StageResult struct {
	File string `json:"file"`
	Path string `json:"path"`
	Rows int    `json:"rows"`
	SKUs int    `json:"skus"`
}

// StageFile downloads the file, converts XLSX to CSV, parses it with the
// canonical loader to reject malformed data before it can reach the
// simulator, and moves it into the data directory. The staged file always
// has a .csv extension.
func (s *StageService) StageFile(ctx context.Context, fileID string) (*StageResult, error) {
	meta, err := s.drive.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(meta.Name))
	if ext != ".csv" && ext != ".xlsx" {
		return nil, fmt.Errorf("unsupported file type %q: only csv and xlsx can be staged", meta.Name)
	}

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dataDir, "staging-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := s.drive.DownloadFile(ctx, meta.ID, tmp); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush staging file: %w", err)
	}

	csvPath := tmpPath
	if ext == ".xlsx" {
		csvPath = strings.TrimSuffix(tmpPath, ext) + ".csv"
		defer os.Remove(csvPath)
		if err := convertXLSXToCSV(tmpPath, csvPath); err != nil {
			return nil, err
		}
	}

	ds, err := dataset.Load(csvPath)
	if err != nil {
		return nil, fmt.Errorf("rejected %s: %w", meta.Name, err)
	}

	finalName := strings.TrimSuffix(meta.Name, filepath.Ext(meta.Name)) + ".csv"
	finalPath := filepath.Join(s.dataDir, finalName)
	if err := os.Rename(csvPath, finalPath); err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", finalName, err)
	}

	return &StageResult{
		File: meta.Name,
		Path: finalPath,
		Rows: ds.Len(),
		SKUs: ds.NumSKUs(),
	}, nil
}
