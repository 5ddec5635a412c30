package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/your-org/homewatch/internal/models"
)

// manifestRecord is one line of the clip manifest (JSON lines).
type manifestRecord struct {
	VideoPath string `json:"video_path"`
	Camera    string `json:"camera"`
	Time      string `json:"time"` // "YYYY-MM-DD HH:MM:SS"
}

const manifestTimeLayout = "2006-01-02 15:04:05"

// LoadManifest reads a JSON-lines clip manifest and resolves paths
// against the video base directory. Records with missing fields or
// unresolved paths are skipped with a warning.
func LoadManifest(path, videoBaseDir string) ([]models.Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	var clips []models.Clip
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec manifestRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skip malformed manifest line", "line", lineNo, "error", err)
			continue
		}
		if rec.VideoPath == "" || rec.Camera == "" || rec.Time == "" {
			slog.Warn("skip manifest record with missing fields", "line", lineNo)
			continue
		}

		start, err := time.ParseInLocation(manifestTimeLayout, rec.Time, time.Local)
		if err != nil {
			slog.Warn("skip manifest record with bad time", "line", lineNo, "time", rec.Time)
			continue
		}

		resolved := rec.VideoPath
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(videoBaseDir, resolved)
		}
		if _, err := os.Stat(resolved); err != nil {
			slog.Warn("skip clip with unresolved path", "line", lineNo, "path", resolved)
			continue
		}

		clips = append(clips, models.Clip{
			VideoPath: resolved,
			Camera:    rec.Camera,
			StartTime: start,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	return clips, nil
}
