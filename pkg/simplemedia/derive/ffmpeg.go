package derive

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// FFmpeg runs invocations through the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	binary      string
	probeBinary string
	tailLines   int
}

// NewFFmpeg creates an engine. Empty binary names fall back to the PATH lookup names.
func NewFFmpeg(binary, probeBinary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if probeBinary == "" {
		probeBinary = "ffprobe"
	}
	return &FFmpeg{binary: binary, probeBinary: probeBinary, tailLines: 20}
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.binary); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

var (
	durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
	timePattern     = regexp.MustCompile(`time=\s*(\d+):(\d+):(\d+(?:\.\d+)?)`)
)

// Run executes `ffmpeg -y -i <input> <args...> <output>`.
func (f *FFmpeg) Run(ctx context.Context, inv Invocation, progress func(percent float64)) error {
	args := make([]string, 0, len(inv.Args)+6)
	args = append(args, "-hide_banner", "-y", "-i", inv.Input)
	args = append(args, inv.Args...)
	args = append(args, inv.Output)

	cmd := exec.CommandContext(ctx, f.binary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to attach stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := scanProgress(stderr, f.tailLines, progress)

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", strings.Join(args, " "), err, strings.Join(tail, " | "))
	}
	return nil
}

// scanProgress consumes ffmpeg's stderr, reporting progress against the
// source duration, and returns the last lines for diagnostics.
func scanProgress(r io.Reader, keep int, progress func(percent float64)) []string {
	scanner := bufio.NewScanner(r)
	scanner.Split(scanLinesOrCR)

	var total float64
	tail := make([]string, 0, keep)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if len(tail) == keep {
			tail = tail[1:]
		}
		tail = append(tail, line)

		if total == 0 {
			if m := durationPattern.FindStringSubmatch(line); m != nil {
				total = clockSeconds(m[1], m[2], m[3])
			}
		}
		if progress != nil && total > 0 {
			if m := timePattern.FindStringSubmatch(line); m != nil {
				pct := clockSeconds(m[1], m[2], m[3]) / total * 100
				if pct > 100 {
					pct = 100
				}
				progress(pct)
			}
		}
	}
	return tail
}

// ffmpeg rewrites its status line with carriage returns.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func clockSeconds(h, m, s string) float64 {
	hours, _ := strconv.ParseFloat(h, 64)
	minutes, _ := strconv.ParseFloat(m, 64)
	seconds, _ := strconv.ParseFloat(s, 64)
	return hours*3600 + minutes*60 + seconds
}

// Duration returns the media duration in seconds using ffprobe.
func (f *FFmpeg) Duration(ctx context.Context, path string) (float64, error) {
	out, err := exec.CommandContext(ctx, f.probeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	value := strings.TrimSpace(string(out))
	if value == "" || value == "N/A" {
		return 0, nil
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected ffprobe duration %q: %w", value, err)
	}
	return seconds, nil
}
