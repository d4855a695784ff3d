package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/memebot/internal/logger"
	"github.com/timmy/memebot/internal/metrics"
	_ "golang.org/x/image/webp"
)

const (
	defaultMaxImageBytes = 20 << 20
	tempPrefix           = ".dl-"
	fallbackBaseName     = "meme.jpg"
	maxBaseNameLen       = 64
)

var (
	// ErrDownloadFailed is returned when an image URL cannot be fetched.
	ErrDownloadFailed = errors.New("image download failed")
	// ErrNotImage is returned when the downloaded body is not a supported image.
	ErrNotImage = errors.New("downloaded content is not an image")
)

// LocalConfig configures the download directory.
type LocalConfig struct {
	Dir           string
	Timeout       time.Duration
	UserAgent     string
	MaxImageBytes int64
	ArchivePrefix string
}

// LocalStore downloads images into a directory and optionally copies
// them to an Archive.
type LocalStore struct {
	dir      string
	client   *resty.Client
	maxBytes int64
	archive  Archive
	prefix   string

	// pruneMu is held for reading while a file is reused or moved into
	// place, and for writing by Prune.
	pruneMu sync.RWMutex
}

// NewLocalStore creates the download directory if needed.
func NewLocalStore(cfg LocalConfig, archive Archive) (*LocalStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("download directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().SetTimeout(timeout)
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	maxBytes := cfg.MaxImageBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}

	return &LocalStore{
		dir:      cfg.Dir,
		client:   client,
		maxBytes: maxBytes,
		archive:  archive,
		prefix:   strings.Trim(cfg.ArchivePrefix, "/"),
	}, nil
}

// Dir returns the download directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// FileName returns the local file name for an image URL: a short hash of
// the URL followed by the last path segment.
func FileName(rawURL string) string {
	sum := md5.Sum([]byte(rawURL))
	hash := hex.EncodeToString(sum[:])[:8]

	base := ""
	if u, err := url.Parse(rawURL); err == nil {
		base = sanitizeBase(path.Base(u.Path))
	}
	if base == "" {
		base = fallbackBaseName
	}
	return hash + "_" + base
}

func sanitizeBase(base string) string {
	if base == "." || base == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxBaseNameLen {
		out = out[len(out)-maxBaseNameLen:]
	}
	return out
}

// Materialize downloads rawURL into the directory and returns the file
// path. A file already present for the URL is reused.
func (s *LocalStore) Materialize(ctx context.Context, rawURL string) (string, error) {
	dest := filepath.Join(s.dir, FileName(rawURL))
	if s.reuse(dest) {
		return dest, nil
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode())
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	size, format, err := s.copyImage(tmp, body)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}

	s.pruneMu.RLock()
	err = os.Rename(tmpName, dest)
	s.pruneMu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("failed to move image into place: %w", err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldSize:       size,
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Debugf("Materialized %s image %s", format, filepath.Base(dest))

	if s.archive != nil {
		s.upload(ctx, dest, format, size)
	}
	return dest, nil
}

// reuse reports whether dest already holds a download and, if so, marks
// it as the newest file so a following Prune keeps it.
func (s *LocalStore) reuse(dest string) bool {
	s.pruneMu.RLock()
	defer s.pruneMu.RUnlock()

	info, err := os.Stat(dest)
	if err != nil || info.Size() == 0 {
		return false
	}
	now := time.Now()
	return os.Chtimes(dest, now, now) == nil
}

// copyImage writes at most maxBytes from body to f and checks that the
// result decodes as an image.
func (s *LocalStore) copyImage(f *os.File, body io.Reader) (int64, string, error) {
	n, err := io.Copy(f, io.LimitReader(body, s.maxBytes+1))
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if n == 0 {
		return 0, "", fmt.Errorf("%w: empty body", ErrDownloadFailed)
	}
	if n > s.maxBytes {
		return 0, "", fmt.Errorf("%w: larger than %d bytes", ErrDownloadFailed, s.maxBytes)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, "", err
	}
	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return n, format, nil
}

func (s *LocalStore) upload(ctx context.Context, filePath, format string, size int64) {
	log := logger.FromContext(ctx)
	key := filepath.Base(filePath)
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	exists, err := s.archive.Exists(ctx, key)
	if err != nil {
		log.WithError(err).Warn("Archive lookup failed")
		return
	}
	if exists {
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		log.WithError(err).Warn("Failed to reopen image for archiving")
		return
	}
	defer f.Close()

	if err := s.archive.Upload(ctx, key, f, size, "image/"+format); err != nil {
		log.WithError(err).Warn("Archive upload failed")
		return
	}
	log.Debugf("Archived image to %s", s.archive.GetURL(key))
}

// Prune removes all but the keep most recently modified images.
func (s *LocalStore) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list download directory: %w", err)
	}

	type file struct {
		name    string
		modTime time.Time
	}
	files := make([]file, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{name: e.Name(), modTime: info.ModTime()})
	}

	if len(files) <= keep {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	removed := 0
	for _, f := range files[keep:] {
		if err := os.Remove(filepath.Join(s.dir, f.name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove %s: %v", f.name, err)
			continue
		}
		removed++
	}
	metrics.FilesPruned.Add(float64(removed))
	return removed, nil
}
