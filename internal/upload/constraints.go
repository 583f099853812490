package upload

import (
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// MaxFileSize is the largest accepted upload, 50 MiB.
	MaxFileSize = int64(50 << 20)

	// ImageTypePrefix is the required prefix of the declared content type.
	ImageTypePrefix = "image/"

	// DefaultExtension is used when the original filename has none.
	DefaultExtension = "jpg"

	tokenLength = 13
)

var (
	ErrNoFile   = errors.New("upload: no file provided")
	ErrNotImage = errors.New("upload: content type is not an image")
	ErrTooLarge = errors.New("upload: file exceeds size limit")

	ErrMultipleFiles = errors.New("upload: more than one file provided")
)

// CheckFile applies the image constraints shared by the relay and the
// uploader widget. It returns ErrNotImage or ErrTooLarge.
func CheckFile(contentType string, size int64) error {
	if !strings.HasPrefix(contentType, ImageTypePrefix) {
		return ErrNotImage
	}
	if size > MaxFileSize {
		return ErrTooLarge
	}
	return nil
}

// Extension returns the text after the last dot of filename, or
// DefaultExtension when there is none or it holds anything but letters and
// digits.
func Extension(filename string) string {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 || i == len(filename)-1 {
		return DefaultExtension
	}
	ext := filename[i+1:]
	for _, r := range ext {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return DefaultExtension
		}
	}
	return ext
}

// ObjectName builds "{unixMillis}-{token}.{ext}".
func ObjectName(filename string, now time.Time, token string) string {
	var b strings.Builder
	b.Grow(32)
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	b.WriteByte('-')
	b.WriteString(token)
	b.WriteByte('.')
	b.WriteString(Extension(filename))
	return b.String()
}

// RandomToken returns 13 random lowercase hex characters.
func RandomToken() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:tokenLength]
}
