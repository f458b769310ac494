// Package upload turns a user-selected video file into an in-memory byte buffer.
//
// TWO STEPS, IN ORDER:
//  1. ValidateVideo checks the declared MIME type and the declared size.
//     It never opens the file.
//  2. ReadAll reads the whole file into memory, refusing oversized files
//     before opening them and never returning a partial buffer.
//
// Both steps run before any remote call is attempted, so a bad file never
// costs a round trip to the backend.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/sakif/skillswap/internal/apperror"
)

// MaxVideoBytes is the largest video the backend accepts.
const MaxVideoBytes int64 = 100_000_000

// AcceptedVideoTypes lists the declared MIME types a lesson video may have.
var AcceptedVideoTypes = []string{"video/mp4", "video/webm", "video/quicktime"}

// Sentinels for branching with errors.Is. Every error this package returns
// is an *apperror.AppError whose chain also contains one of these.
var (
	ErrUnsupportedType = errors.New("upload: unsupported video type")
	ErrTooLarge        = errors.New("upload: file too large")
	ErrRead            = errors.New("upload: read failed")
)

// File is the minimal view of an uploaded file the helpers need.
// multipart.FileHeader satisfies it through FromMultipart; tests use fakes.
type File interface {
	Filename() string
	Size() int64
	ContentType() string
	Open() (io.ReadCloser, error)
}

// ValidateVideo checks the declared type and size of f.
//
// The declared type is what the browser sent in the multipart part header.
// Parameters such as "; codecs=..." are ignored.
func ValidateVideo(f File) error {
	if !isAcceptedType(f.ContentType()) {
		return &apperror.AppError{
			Err:     fmt.Errorf("%w: %w", apperror.ErrValidation, ErrUnsupportedType),
			Message: "Please upload a video file (MP4, WebM, or MOV)",
			Field:   "video",
		}
	}
	if f.Size() > MaxVideoBytes {
		return &apperror.AppError{
			Err:     fmt.Errorf("%w: %w", apperror.ErrValidation, ErrTooLarge),
			Message: fmt.Sprintf("Video file must be under %s", humanize.Bytes(uint64(MaxVideoBytes))),
			Field:   "video",
		}
	}
	return nil
}

// ReadAll reads the entire file into memory.
//
// Files whose declared size exceeds max are rejected before Open is called.
// If the stream turns out longer than declared, the read is abandoned and the
// same size error is returned. On any failure the returned slice is nil.
func ReadAll(ctx context.Context, f File, max int64) ([]byte, error) {
	if f.Size() > max {
		return nil, tooLarge(max)
	}
	if err := ctx.Err(); err != nil {
		return nil, readFailed(err)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, readFailed(err)
	}
	defer rc.Close()

	// Read one byte past the limit so an oversized stream is detectable.
	data, err := io.ReadAll(io.LimitReader(rc, max+1))
	if err != nil {
		return nil, readFailed(err)
	}
	if int64(len(data)) > max {
		return nil, tooLarge(max)
	}
	if err := ctx.Err(); err != nil {
		return nil, readFailed(err)
	}

	return data, nil
}

func tooLarge(max int64) error {
	return &apperror.AppError{
		Err:     fmt.Errorf("%w: %w", apperror.ErrValidation, ErrTooLarge),
		Message: fmt.Sprintf("File size exceeds %s limit", humanize.Bytes(uint64(max))),
		Field:   "video",
	}
}

func readFailed(cause error) error {
	return &apperror.AppError{
		Err:     fmt.Errorf("%w: %w", ErrRead, cause),
		Message: "Failed to read file",
		Field:   "video",
	}
}

func isAcceptedType(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	for _, t := range AcceptedVideoTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// multipartFile adapts *multipart.FileHeader to File.
type multipartFile struct {
	fh *multipart.FileHeader
}

// FromMultipart wraps a parsed form file.
func FromMultipart(fh *multipart.FileHeader) File {
	return multipartFile{fh: fh}
}

func (m multipartFile) Filename() string    { return m.fh.Filename }
func (m multipartFile) Size() int64         { return m.fh.Size }
func (m multipartFile) ContentType() string { return m.fh.Header.Get("Content-Type") }

func (m multipartFile) Open() (io.ReadCloser, error) {
	return m.fh.Open()
}
