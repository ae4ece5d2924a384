package fetcher

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FetchSource downloads a source file into destDir, extracting it when
// the URL names a ZIP archive. Returns the path to the usable file
// (the largest .csv inside an archive, the downloaded file otherwise).
// An existing non-empty download is reused.
func (f *Fetcher) FetchSource(ctx context.Context, url, destDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "fetcher"),
		zap.String("url", url),
	)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create dest dir")
	}

	parts := strings.Split(url, "/")
	name := parts[len(parts)-1]
	destPath := filepath.Join(destDir, name)

	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		log.Debug("file already exists, skipping download", zap.String("path", destPath))
	} else {
		log.Info("downloading source file")
		if err := f.DownloadTo(ctx, url, destPath); err != nil {
			return "", err
		}
	}

	if !strings.EqualFold(filepath.Ext(name), ".zip") {
		return destPath, nil
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(name, filepath.Ext(name)))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create extract dir")
	}
	if err := extractZIP(destPath, extractDir); err != nil {
		return "", err
	}

	return largestByExt(extractDir, ".csv")
}

func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrapf(err, "fetcher: open zip %s", zipPath)
	}
	defer func() { _ = r.Close() }()

	for _, file := range r.File {
		// Reject entries escaping the extraction directory.
		path := filepath.Join(destDir, file.Name)
		if !strings.HasPrefix(path, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return eris.Errorf("fetcher: zip entry %q escapes extraction dir", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0o755); err != nil {
				return eris.Wrap(err, "fetcher: create zip dir")
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return eris.Wrap(err, "fetcher: create zip parent dir")
		}

		src, err := file.Open()
		if err != nil {
			return eris.Wrapf(err, "fetcher: open zip entry %s", file.Name)
		}
		dst, err := os.Create(path)
		if err != nil {
			_ = src.Close()
			return eris.Wrapf(err, "fetcher: create %s", path)
		}
		_, err = io.Copy(dst, src)
		_ = src.Close()
		_ = dst.Close()
		if err != nil {
			return eris.Wrapf(err, "fetcher: extract %s", file.Name)
		}
	}
	return nil
}

func largestByExt(dir, ext string) (string, error) {
	var best string
	var bestSize int64

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		if info.Size() > bestSize {
			best = path
			bestSize = info.Size()
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: scan %s", dir)
	}
	if best == "" {
		return "", eris.Errorf("fetcher: no %s file found under %s", ext, dir)
	}
	return best, nil
}
