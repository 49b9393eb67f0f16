// Package storage keeps user uploaded files on local disk.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// URLPrefix is where saved avatars are served from.
const URLPrefix = "/uploads/avatars"

var (
	ErrEmptyFile         = errors.New("file is empty")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidImage      = errors.New("file is not a valid image")
)

var supportedExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

type FileStorage interface {
	// Save stores the image read from r and returns its public URL.
	Save(ctx context.Context, r io.Reader, originalName string) (string, error)
}

// LocalFileStorage writes images under <basePath>/uploads/avatars, shrinking
// them to fit maxDimension on both sides. A maxDimension of 0 keeps the
// original size.
type LocalFileStorage struct {
	basePath     string
	maxDimension int
}

func NewLocalFileStorage(basePath string, maxDimension int) *LocalFileStorage {
	return &LocalFileStorage{basePath: basePath, maxDimension: maxDimension}
}

// Dir is the directory files are written to.
func (s *LocalFileStorage) Dir() string {
	return filepath.Join(s.basePath, "uploads", "avatars")
}

func (s *LocalFileStorage) Save(ctx context.Context, r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if _, ok := supportedExtensions[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, err := decodeImage(data, ext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	img = s.fit(img)

	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return "", fmt.Errorf("create avatar directory: %w", err)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.Dir(), name)
	if err := writeImage(path, img, ext); err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return URLPrefix + "/" + name, nil
}

func (s *LocalFileStorage) fit(img image.Image) image.Image {
	if s.maxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= s.maxDimension && b.Dy() <= s.maxDimension {
		return img
	}
	return imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
}

func decodeImage(data []byte, ext string) (image.Image, error) {
	if ext == ".webp" {
		return webp.Decode(bytes.NewReader(data))
	}
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

func writeImage(path string, img image.Image, ext string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if ext == ".webp" {
		err = webp.Encode(f, img, &webp.Options{Quality: 85})
	} else {
		var format imaging.Format
		format, err = imaging.FormatFromExtension(ext)
		if err == nil {
			err = imaging.Encode(f, img, format, imaging.JPEGQuality(90))
		}
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("encode image: %w", err)
	}
	return f.Close()
}
