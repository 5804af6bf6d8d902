package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/stocksim/internal/drive"
	"github.com/andresuchdata/stocksim/internal/storage"
	"github.com/andresuchdata/stocksim/pkg/logger"
)

func fetchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "source",
			Usage: "Where to fetch from: drive or minio",
			Value: "drive",
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "Local directory receiving the fetched dataset files",
			Value:   "./data",
			EnvVars: []string{"DATA_DIR"},
		},
		&cli.StringFlag{
			Name:    "drive-folder-id",
			Usage:   "Google Drive folder ID containing dataset files",
			EnvVars: []string{"DRIVE_FOLDER_ID"},
		},
		&cli.StringFlag{
			Name:  "prefix",
			Usage: "Object key prefix to fetch from MinIO",
		},
	}
}

func minioConfigFromEnv() storage.MinIOConfig {
	return storage.MinIOConfig{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    os.Getenv("MINIO_BUCKET"),
		UseSSL:    strings.EqualFold(os.Getenv("MINIO_USE_SSL"), "true"),
	}
}

func runFetch(c *cli.Context) error {
	log := logger.Component("pipeline")
	dataDir := c.String("data-dir")

	switch c.String("source") {
	case "drive":
		credsJSON := os.Getenv("GOOGLE_DRIVE_CREDENTIALS_JSON")
		if strings.TrimSpace(credsJSON) == "" {
			return fmt.Errorf("GOOGLE_DRIVE_CREDENTIALS_JSON env is required for drive fetch")
		}
		folderID := c.String("drive-folder-id")
		if folderID == "" {
			return fmt.Errorf("drive-folder-id is required")
		}

		svc, err := drive.NewService(c.Context, credsJSON)
		if err != nil {
			return err
		}
		paths, err := drive.NewDownloader(svc).DownloadFolderCSV(c.Context, drive.DownloadOptions{
			FolderID:    folderID,
			DownloadDir: dataDir,
		})
		if err != nil {
			return err
		}
		log.Info().Int("files", len(paths)).Str("dir", dataDir).Msg("Drive fetch completed")
		return nil

	case "minio":
		client, err := storage.NewMinIOClient(minioConfigFromEnv())
		if err != nil {
			return err
		}
		objects, err := client.ListObjects(c.Context, c.String("prefix"))
		if err != nil {
			return err
		}

		fetched := 0
		for _, obj := range objects {
			if strings.ToLower(filepath.Ext(obj.Key)) != ".csv" {
				continue
			}
			dest := filepath.Join(dataDir, filepath.Base(obj.Key))
			if err := client.DownloadObject(c.Context, obj.Key, dest); err != nil {
				return err
			}
			log.Debug().Str("key", obj.Key).Str("dest", dest).Msg("Object downloaded")
			fetched++
		}
		log.Info().Int("files", fetched).Str("dir", dataDir).Msg("Object storage fetch completed")
		return nil

	default:
		return fmt.Errorf("unknown source %q: use drive or minio", c.String("source"))
	}
}
