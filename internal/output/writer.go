package output

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"himawari-desktop/internal/common"
)

// Format identifies a lossless output encoding
type Format string

const (
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
)

// FormatForPath picks the encoding from the file extension; unknown
// extensions fall back to PNG
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return FormatTIFF
	default:
		return FormatPNG
	}
}

// Writer persists composites, replacing any previous file atomically
type Writer struct {
	permFile os.FileMode
	permDir  os.FileMode
	bufSize  int
}

// NewWriter returns a Writer with 0644 files and 0755 directories
func NewWriter() *Writer {
	return &Writer{permFile: 0o644, permDir: 0o755, bufSize: 256 * 1024}
}

// Write encodes img to path. The image is written to a temporary file in the
// same directory and renamed over path only after it was fully flushed, so a
// failed write leaves any previous file untouched.
func (w *Writer) Write(ctx context.Context, img image.Image, path string) error {
	if img == nil {
		return fmt.Errorf("%w: no image to write", common.ErrIO)
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: output path is empty", common.ErrIO)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, w.permDir); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %v", common.ErrIO, err)
	}

	tmp, err := os.CreateTemp(dir, ".himawari-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temporary file: %v", common.ErrIO, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()
	_ = os.Chmod(tmpPath, w.permFile)

	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if err := encode(bw, img, FormatForPath(path)); err != nil {
		return fmt.Errorf("%w: failed to encode image: %v", common.ErrIO, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: failed to flush image: %v", common.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: failed to sync image: %v", common.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close image: %v", common.ErrIO, err)
	}
	// Last chance to abort before the destination is touched.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := osReplace(tmpPath, path); err != nil {
		return fmt.Errorf("%w: failed to replace %s: %v", common.ErrIO, path, err)
	}
	committed = true
	_ = syncDir(dir)

	log.Printf("[Output] Saved: %s", path)
	return nil
}

func encode(wr io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatTIFF:
		return tiff.Encode(wr, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	default:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(wr, img)
	}
}

// ReadBack decodes a previously written composite
func ReadBack(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIO, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	var img image.Image
	switch FormatForPath(path) {
	case FormatTIFF:
		img, err = tiff.Decode(br)
	default:
		img, err = png.Decode(br)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecode, err)
	}
	return img, nil
}
