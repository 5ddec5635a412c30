package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ClipInfo holds the probed properties of a video file.
type ClipInfo struct {
	FPS      float64
	Width    int
	Height   int
	Duration float64 // seconds
}

// Probe runs ffprobe against a video file and parses the stream and
// format properties the sampler needs.
func Probe(ctx context.Context, path string) (*ClipInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate,width,height",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var probe struct {
		Streams []struct {
			AvgFrameRate string `json:"avg_frame_rate"`
			Width        int    `json:"width"`
			Height       int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no video stream in %s", path)
	}

	info := &ClipInfo{
		FPS:    parseFrameRate(probe.Streams[0].AvgFrameRate),
		Width:  probe.Streams[0].Width,
		Height: probe.Streams[0].Height,
	}
	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if info.FPS <= 0 {
		info.FPS = 25 // common surveillance camera default
	}
	return info, nil
}

// parseFrameRate converts ffprobe's "num/den" rational to a float.
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && den > 0 {
			return num / den
		}
		return 0
	}
	v, _ := strconv.ParseFloat(rate, 64)
	return v
}
