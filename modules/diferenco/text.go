package diferenco

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unsafe"

	"github.com/antgroup/zeta-workspace/modules/streamio"
)

// /*
//  * xdiff isn't equipped to handle content over a gigabyte;
//  * we make the cutoff 1GB - 1MB to give some breathing
//  * room for constant-sized additions (e.g., merge markers)
//  */
//  #define MAX_XDIFF_SIZE (1024UL * 1024 * 1023)

const (
	MAX_DIFF_SIZE = 100 << 20 // MAX_DIFF_SIZE 100MiB
	BINARY        = "binary"
	UTF8          = "UTF-8"
	sniffLen      = 8000
)

var (
	// ErrBinaryData is returned when the content is detected as binary.
	ErrBinaryData = errors.New("binary data")
)

func readRawText(r io.Reader, size int) (string, error) {
	var b bytes.Buffer

	if _, err := b.ReadFrom(io.LimitReader(r, sniffLen)); err != nil {
		return "", fmt.Errorf("failed to read initial bytes: %w", err)
	}

	if bytes.IndexByte(b.Bytes(), 0) != -1 {
		return "", fmt.Errorf("%w: detected null byte in content", ErrBinaryData)
	}

	b.Grow(size)

	if _, err := b.ReadFrom(r); err != nil {
		return "", fmt.Errorf("failed to read remaining content: %w", err)
	}

	content := b.Bytes()
	return unsafe.String(unsafe.SliceData(content), len(content)), nil
}

// ReadUnifiedText reads the full content of r and classifies it as text or
// binary using the same NUL-byte sniff the working tree uses; size gates
// blobs past MAX_DIFF_SIZE without reading them.
func ReadUnifiedText(r io.Reader, size int64) (content string, err error) {
	if size > MAX_DIFF_SIZE {
		return "", fmt.Errorf("file size %d bytes exceeds limit %d bytes", size, MAX_DIFF_SIZE)
	}
	if content, err = readRawText(r, int(size)); err != nil {
		return "", fmt.Errorf("failed to read raw text: %w", err)
	}
	return content, nil
}

// NewTextReader returns r unmodified after confirming its sniffed prefix
// contains no NUL byte, or ErrBinaryData if it looks binary.
func NewTextReader(r io.Reader) (io.Reader, error) {
	sniffBytes, err := streamio.ReadMax(r, sniffLen)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(sniffBytes, 0) != -1 {
		return nil, ErrBinaryData
	}
	return io.MultiReader(bytes.NewReader(sniffBytes), r), nil
}
