package sources

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
	"github.com/asticode/go-astisub"
)

// Media shells out to yt-dlp and ffmpeg for stream URLs, single frames and
// subtitle files.
type Media struct {
	ytdlp   string
	ffmpeg  string
	tempDir string
	timeout time.Duration
}

// NewMedia resolves tool paths; empty values fall back to the binaries on PATH.
func NewMedia(ytdlpPath, ffmpegPath, tempDir string) *Media {
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Media{ytdlp: ytdlpPath, ffmpeg: ffmpegPath, tempDir: tempDir, timeout: 2 * time.Minute}
}

// StreamURL returns a direct media URL for videoURL (first line of yt-dlp -g).
func (m *Media) StreamURL(ctx context.Context, videoURL string) (string, error) {
	out, err := m.run(ctx, m.ytdlp,
		"-g", "-f", "best[ext=mp4]/best", "--no-playlist", "--no-warnings", videoURL)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); strings.HasPrefix(line, "http") {
			return line, nil
		}
	}
	return "", errors.New("yt-dlp returned no stream URL")
}

// ExtractFrame grabs one JPEG frame at offset at.
func (m *Media) ExtractFrame(ctx context.Context, videoURL string, at time.Duration) ([]byte, error) {
	if _, err := ExtractVideoID(videoURL); err != nil {
		return nil, err
	}
	engine.IncrFrameRequests()

	stream, err := m.StreamURL(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	img, err := m.run(ctx, m.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
		"-i", stream,
		"-frames:v", "1",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("ffmpeg: no frame at %s", FormatTimecode(at))
	}
	return img, nil
}

// Subtitles downloads English subtitles (manual or auto) as WebVTT and parses
// them into timed segments.
func (m *Media) Subtitles(ctx context.Context, videoID string) ([]engine.TranscriptSegment, error) {
	dir, err := os.MkdirTemp(m.tempDir, "ytsubs-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	_, err = m.run(ctx, m.ytdlp,
		"--skip-download", "--write-subs", "--write-auto-subs",
		"--sub-langs", "en.*,en", "--sub-format", "vtt",
		"--no-playlist", "--no-warnings",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		WatchURL(videoID))
	if err != nil {
		return nil, fmt.Errorf("yt-dlp subtitles: %w", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "*.vtt"))
	if len(files) == 0 {
		return nil, errors.New("yt-dlp wrote no subtitle file")
	}
	subs, err := astisub.OpenFile(files[0])
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(files[0]), err)
	}
	return subtitleSegments(subs), nil
}

// subtitleSegments flattens subtitle items. Auto-generated tracks repeat the
// previous cue while rolling, so consecutive duplicates are dropped.
func subtitleSegments(subs *astisub.Subtitles) []engine.TranscriptSegment {
	out := make([]engine.TranscriptSegment, 0, len(subs.Items))
	prev := ""
	for _, item := range subs.Items {
		var parts []string
		for _, line := range item.Lines {
			for _, li := range line.Items {
				if t := strings.TrimSpace(li.Text); t != "" {
					parts = append(parts, t)
				}
			}
		}
		text := engine.CleanHTML(strings.Join(parts, " "))
		if text == "" || text == prev {
			continue
		}
		prev = text
		out = append(out, engine.TranscriptSegment{
			Start:    item.StartAt.Seconds(),
			Duration: (item.EndAt - item.StartAt).Seconds(),
			Text:     text,
		})
	}
	return out
}

func (m *Media) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	slog.Debug("exec", slog.String("cmd", filepath.Base(name)),
		slog.Duration("took", time.Since(start)), slog.Int("stdout", stdout.Len()))
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, engine.TruncateRunes(msg, 300, "..."))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
