package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
)

// FrameCallback is called for each sampled JPEG frame in order.
type FrameCallback func(frameIndex int, frameData []byte) error

// SampleResult reports what the sampler produced for one clip.
type SampleResult struct {
	Frames   int
	Duration float64
	Width    int
	Height   int
}

// SampleClip decodes a video file and emits frames at approximately
// targetFPS by striding round(source_fps / target_fps) source frames.
// Frames are delivered to the callback in decode order as JPEG bytes.
func SampleClip(ctx context.Context, path string, targetFPS float64, callback FrameCallback) (*SampleResult, error) {
	info, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	stride := int(math.Round(info.FPS / targetFPS))
	if stride < 1 {
		stride = 1
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-i", path,
		"-vf", fmt.Sprintf("select=not(mod(n\\,%d))", stride),
		"-vsync", "vfr",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			slog.Warn("ffmpeg stderr", "output", scanner.Text())
		}
	}()

	frames, err := readJPEGFrames(ctx, stdout, callback)
	if err != nil {
		return nil, fmt.Errorf("read frames from %s: %w", path, err)
	}

	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("ffmpeg %s: %w", path, err)
	}

	return &SampleResult{
		Frames:   frames,
		Duration: info.Duration,
		Width:    info.Width,
		Height:   info.Height,
	}, nil
}

// SnapshotAt extracts a single JPEG frame at the given offset, used by
// the evidence materializer.
func SnapshotAt(ctx context.Context, path string, offsetSec float64) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(offsetSec, 'f', 2, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("snapshot %s at %.2fs: %w", path, offsetSec, err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("snapshot %s at %.2fs: empty output", path, offsetSec)
	}
	return output, nil
}

// readJPEGFrames reads a stream of concatenated JPEG images and calls
// the callback per complete frame. Returns the number of frames read.
func readJPEGFrames(ctx context.Context, r io.Reader, callback FrameCallback) (int, error) {
	reader := bufio.NewReaderSize(r, 512*1024)
	framesRead := 0

	for {
		if ctx.Err() != nil {
			return framesRead, ctx.Err()
		}

		// Find JPEG start marker: FF D8
		if err := findJPEGStart(reader); err != nil {
			if err == io.EOF {
				return framesRead, nil
			}
			return framesRead, err
		}

		// Read until JPEG end marker: FF D9
		frameData, err := readUntilJPEGEnd(reader)
		if err != nil {
			if err == io.EOF {
				return framesRead, nil // stream ended mid-frame
			}
			return framesRead, err
		}

		if len(frameData) > 0 {
			if err := callback(framesRead, frameData); err != nil {
				slog.Warn("frame callback error", "frame", framesRead, "error", err)
			}
			framesRead++
		}
	}
}

func findJPEGStart(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0xFF {
			continue
		}
		b, err = r.ReadByte()
		if err != nil {
			return err
		}
		if b == 0xD8 {
			return nil
		}
	}
}

func readUntilJPEGEnd(r *bufio.Reader) ([]byte, error) {
	data := []byte{0xFF, 0xD8}

	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		data = append(data, b)

		if b == 0xFF {
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			data = append(data, next)
			if next == 0xD9 {
				return data, nil
			}
		}

		// Safety: max 10MB per frame
		if len(data) > 10*1024*1024 {
			return nil, fmt.Errorf("jpeg frame too large: %d bytes", len(data))
		}
	}
}
