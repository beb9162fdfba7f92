// Package upload intercepts uploaded files: it enforces the size limit while
// chunks arrive and sanitizes the assembled payload before it is stored.
package upload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"

	"github.com/ankit-chaubey/docsurgery/core"
)

// UnprocessableMessage is shown when an upload cannot be sanitized.
const UnprocessableMessage = "file could not be processed"

// ErrUploadFinished is returned by ReceiveChunk and Complete once Complete
// has accepted the upload.
var ErrUploadFinished = errors.New("upload already completed")

// Abort reasons.
const (
	ReasonTooLarge      = "too_large"
	ReasonUnprocessable = "unprocessable"
)

// Extractor sanitizes a complete payload.
type Extractor interface {
	Extract(data []byte, contentType string) (sanitized bool, out []byte, err error)
}

// AbortError ends an upload. Message is safe to show to the uploader; Err
// holds the underlying cause, if any.
type AbortError struct {
	Reason  string
	Message string
	Err     error
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload aborted (%s): %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("upload aborted (%s): %s", e.Reason, e.Message)
}

func (e *AbortError) Unwrap() error { return e.Err }

// IsTooLarge reports whether err aborted an upload for exceeding the limit.
func IsTooLarge(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae) && ae.Reason == ReasonTooLarge
}

// File is an accepted upload.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Sanitized   bool   `json:"sanitized"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
	Data        []byte `json:"-"`
}

// Hook holds the upload policy. It is safe for concurrent use; each upload
// gets its own Upload.
type Hook struct {
	maxSize   int64
	chunkSize int
	message   string
	ex        Extractor
	logger    hclog.Logger
}

// NewHook returns a Hook. Zero config values take the package defaults.
func NewHook(cfg core.UploadConfig, ex Extractor, logger hclog.Logger) (*Hook, error) {
	if ex == nil {
		return nil, errors.New("upload hook needs an extractor")
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	h := &Hook{
		maxSize:   cfg.MaxSizeBytes,
		chunkSize: cfg.ChunkSize,
		message:   cfg.SizeErrorMessage,
		ex:        ex,
		logger:    logger,
	}
	if h.maxSize <= 0 {
		h.maxSize = core.DefaultMaxSizeBytes
	}
	if h.chunkSize <= 0 {
		h.chunkSize = core.DefaultChunkSize
	}
	if h.message == "" {
		h.message = core.DefaultSizeErrorMessage
	}
	return h, nil
}

// MaxSize returns the size limit in bytes.
func (h *Hook) MaxSize() int64 { return h.maxSize }

func (h *Hook) sizeMessage() string {
	if strings.Count(h.message, "%s") == 1 {
		return fmt.Sprintf(h.message, humanize.IBytes(uint64(h.maxSize)))
	}
	return h.message
}

// Upload accumulates the chunks of one file.
type Upload struct {
	hook        *Hook
	name        string
	contentType string
	buf         bytes.Buffer
	size        int64
	err         error
}

// Begin starts a new upload.
func (h *Hook) Begin(name, contentType string) *Upload {
	return &Upload{hook: h, name: name, contentType: contentType}
}

// ReceiveChunk appends chunk. Once the running total exceeds the limit the
// buffered bytes are dropped and every later call returns the same
// *AbortError.
func (u *Upload) ReceiveChunk(chunk []byte) error {
	if u.err != nil {
		return u.err
	}
	u.size += int64(len(chunk))
	if u.size > u.hook.maxSize {
		u.discard()
		u.err = &AbortError{Reason: ReasonTooLarge, Message: u.hook.sizeMessage()}
		u.hook.logger.Info("upload too large", "name", u.name, "received", u.size, "limit", u.hook.maxSize)
		return u.err
	}
	u.buf.Write(chunk)
	return nil
}

// Complete sanitizes the assembled payload. Extraction failures become an
// *AbortError with UnprocessableMessage and the original bytes are dropped.
// An upload completes at most once; later calls return ErrUploadFinished.
func (u *Upload) Complete() (*File, error) {
	if u.err != nil {
		return nil, u.err
	}
	data := u.buf.Bytes()
	sanitized, out, err := u.hook.ex.Extract(data, u.contentType)
	u.discard()
	if err != nil {
		u.err = &AbortError{Reason: ReasonUnprocessable, Message: UnprocessableMessage, Err: err}
		u.hook.logger.Warn("upload rejected", "name", u.name, "content_type", u.contentType, "error", err)
		return nil, u.err
	}

	sum := sha256.Sum256(out)
	f := &File{
		Name:        u.name,
		ContentType: u.contentType,
		Sanitized:   sanitized,
		Size:        int64(len(out)),
		SHA256:      hex.EncodeToString(sum[:]),
		Data:        out,
	}
	u.err = ErrUploadFinished
	u.hook.logger.Debug("upload accepted", "name", f.Name, "sanitized", f.Sanitized, "size", f.Size)
	return f, nil
}

func (u *Upload) discard() {
	u.buf = bytes.Buffer{}
}

// Process reads r in chunks through a new Upload and completes it.
func (h *Hook) Process(name, contentType string, r io.Reader) (*File, error) {
	u := h.Begin(name, contentType)
	chunk := make([]byte, h.chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if cerr := u.ReceiveChunk(chunk[:n]); cerr != nil {
				return nil, cerr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading upload %s: %w", name, err)
		}
	}
	return u.Complete()
}
