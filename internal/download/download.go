package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"siren/internal/logging"
	"siren/internal/services"
)

var (
	// ErrStatus reports a non-200 response from the audio host.
	ErrStatus = errors.New("unexpected download status")
	// ErrContentType reports a response that is not audio/*.
	ErrContentType = errors.New("response is not audio")
	// ErrEmptyBody reports a response without content.
	ErrEmptyBody = errors.New("response has no body")
	// ErrInterrupted reports a download stopped by its progress callback.
	ErrInterrupted = errors.New("download interrupted")
)

// UnknownTotal is the total reported when the response has no length.
const UnknownTotal int64 = -1

const (
	chunkSize  = 32 << 10
	partSuffix = ".part"
)

// Progress is told the size of each chunk before it is written, and the
// expected total. The first call reports zero bytes. Returning true aborts
// the download.
type Progress func(n, total int64) bool

// HTTPDoer describes the HTTP client used for downloads.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customizes a Downloader.
type Option func(*Downloader)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(d *Downloader) {
		if doer != nil {
			d.http = doer
		}
	}
}

// WithLogger sets the logger for download events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Downloader) {
		d.logger = logger
	}
}

// WithUserAgent sets the User-Agent header on audio requests.
func WithUserAgent(agent string) Option {
	return func(d *Downloader) {
		d.userAgent = strings.TrimSpace(agent)
	}
}

// Downloader writes song audio under a directory.
type Downloader struct {
	dir       string
	http      HTTPDoer
	userAgent string
	logger    *slog.Logger
}

// New returns a downloader that generates paths under dir.
func New(dir string, opts ...Option) *Downloader {
	d := &Downloader{dir: dir, http: &http.Client{}}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.logger = logging.NewComponentLogger(d.logger, "download")
	return d
}

// Dir returns the download directory.
func (d *Downloader) Dir() string { return d.dir }

// Path returns the generated destination of song.
func (d *Downloader) Path(song Source) string { return GeneratePath(d.dir, song) }

// Download fetches song to path, or to its generated path when path is
// empty, and returns the destination.
func (d *Downloader) Download(ctx context.Context, song Source, path string, progress Progress) (string, error) {
	if path == "" {
		path = d.Path(song)
	}
	if _, err := d.To(ctx, song, path, progress); err != nil {
		return "", err
	}
	return path, nil
}

// Ensure is Download, except that an existing file is kept. The callback
// then sees a single (0, 0) report and may still abort.
func (d *Downloader) Ensure(ctx context.Context, song Source, path string, progress Progress) (string, bool, error) {
	if path == "" {
		path = d.Path(song)
	}
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Mode().IsRegular():
		if progress != nil && progress(0, 0) {
			return "", false, ErrInterrupted
		}
		d.logger.DebugContext(ctx, "download skipped; file exists",
			logging.String(logging.FieldSongID, song.CID()),
			logging.String("path", path),
		)
		return path, false, nil
	case err == nil:
		return "", false, services.Wrap(services.ErrValidation, "download", "ensure", fmt.Sprintf("%s is not a regular file", path), nil)
	case !errors.Is(err, fs.ErrNotExist):
		return "", false, fmt.Errorf("stat %s: %w", path, err)
	}
	if _, err := d.To(ctx, song, path, progress); err != nil {
		return "", false, err
	}
	return path, true, nil
}

// To fetches song's audio into path and returns the bytes written.
func (d *Downloader) To(ctx context.Context, song Source, path string, progress Progress) (int64, error) {
	start := time.Now()
	source := song.SourceURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	d.logger.DebugContext(ctx, "download started",
		logging.String(logging.FieldSongID, song.CID()),
		logging.String("url", source),
	)
	resp, err := d.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, services.Wrap(services.ErrTransient, "download", "GET "+source, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET %s: %w: %d != 200", source, statusMarker(resp.StatusCode), resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !isAudio(contentType) {
		return 0, fmt.Errorf("GET %s: %w: %q", source, ErrContentType, contentType)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return 0, fmt.Errorf("GET %s: %w", source, ErrEmptyBody)
	}
	total := contentLength(resp)
	if progress != nil && progress(0, total) {
		return 0, ErrInterrupted
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create download directory: %w", err)
	}
	part := path + partSuffix
	written, err := copyChunks(part, resp.Body, total, progress)
	if err != nil {
		_ = os.Remove(part)
		if errors.Is(err, ErrInterrupted) {
			d.logger.InfoContext(ctx, "download interrupted",
				logging.String(logging.FieldSongID, song.CID()),
				logging.Bytes("written", written),
			)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return written, ctxErr
		}
		return written, err
	}
	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return written, fmt.Errorf("rename %s: %w", part, err)
	}

	d.logger.InfoContext(ctx, "download completed",
		logging.String(logging.FieldSongID, song.CID()),
		logging.String("path", path),
		logging.Bytes("size", written),
		logging.Duration("elapsed", time.Since(start)),
	)
	return written, nil
}

func copyChunks(path string, body io.Reader, total int64, progress Progress) (int64, error) {
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if progress != nil && progress(int64(n), total) {
				return written, ErrInterrupted
			}
			if _, err := out.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write %s: %w", path, err)
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, services.Wrap(services.ErrTransient, "download", "read body", "", readErr)
		}
	}
	if total >= 0 && written != total {
		return written, services.Wrap(services.ErrTransient, "download", "read body",
			fmt.Sprintf("got %d of %d bytes", written, total), nil)
	}
	return written, out.Close()
}

func contentLength(resp *http.Response) int64 {
	if resp.ContentLength >= 0 {
		return resp.ContentLength
	}
	if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil && n >= 0 {
		return n
	}
	return UnknownTotal
}

func isAudio(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.HasPrefix(mediaType, "audio/")
}

type statusError struct {
	code int
}

func (e statusError) Error() string { return ErrStatus.Error() }

func (e statusError) Unwrap() []error {
	switch {
	case e.code == http.StatusNotFound:
		return []error{ErrStatus, services.ErrNotFound}
	case e.code >= http.StatusInternalServerError:
		return []error{ErrStatus, services.ErrTransient}
	default:
		return []error{ErrStatus, services.ErrValidation}
	}
}

func statusMarker(code int) error { return statusError{code: code} }
