package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"akta-archive/models"

	"golang.org/x/image/draw"
	"gorm.io/datatypes"
)

// ErrImageTooLarge is returned when an image declares more pixels than allowed.
var ErrImageTooLarge = errors.New("image too large")

// Upload is one file received from a client before it is stored.
type Upload struct {
	Name      string
	MediaType string
	Data      []byte
}

// DetectMediaType fills MediaType from the content when the client did not send one.
func (u Upload) DetectMediaType() string {
	if u.MediaType != "" && u.MediaType != "application/octet-stream" {
		return u.MediaType
	}
	return http.DetectContentType(u.Data)
}

func isImage(mediaType string) bool {
	return strings.HasPrefix(mediaType, "image/")
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

// CompressImage re-encodes an image as JPEG, scaling it down to maxWidth
// while keeping the aspect ratio. Images whose header declares more than
// maxPixels pixels are refused before any pixel data is decoded.
func CompressImage(data []byte, maxWidth, quality, maxPixels int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := src.Bounds()
	width, height := b.Dx(), b.Dy()
	if width > maxWidth {
		height = (height*maxWidth + width/2) / width
		width = maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}

func (s *Store) recordDir(recordID string) string {
	return filepath.Join(s.documentsDir(), recordID)
}

// Normalize fills in the media type and recompresses images. An image that
// fails to decode or is too large to decode is returned as uploaded.
func (s *Store) Normalize(recordID string, u Upload) Upload {
	u.MediaType = u.DetectMediaType()
	if !isImage(u.MediaType) {
		return u
	}
	compressed, err := CompressImage(u.Data, s.opts.MaxImageWidth, s.opts.JPEGQuality, s.maxImagePixels())
	if err != nil {
		s.log.Warn("keeping image without compression",
			slog.String("record", recordID),
			slog.String("name", u.Name),
			slog.Any("error", err),
		)
		return u
	}
	u.Data, u.MediaType = compressed, "image/jpeg"
	return u
}

// SaveDocuments writes uploads under the record's directory after Normalize.
func (s *Store) SaveDocuments(recordID string, uploads []Upload) (datatypes.JSONSlice[models.Document], error) {
	docs := datatypes.JSONSlice[models.Document]{}
	if len(uploads) == 0 {
		return docs, nil
	}

	dir := s.recordDir(recordID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	for i, u := range uploads {
		u = s.Normalize(recordID, u)
		data, mediaType := u.Data, u.MediaType

		file := fmt.Sprintf("%02d%s", i+1, extensionFor(mediaType))
		path := filepath.Join(dir, file)
		if err := os.WriteFile(path, data, 0644); err != nil {
			s.removeDocuments(recordID)
			return nil, fmt.Errorf("failed to write document to '%s': %w", path, err)
		}

		docs = append(docs, models.Document{
			Name:      u.Name,
			MediaType: mediaType,
			File:      file,
			SizeBytes: int64(len(data)),
		})
	}
	return docs, nil
}

// DocumentPath resolves the index-th document of rec on disk.
func (s *Store) DocumentPath(rec *models.MarriageRecord, index int) (string, models.Document, error) {
	if index < 0 || index >= len(rec.Documents) {
		return "", models.Document{}, fmt.Errorf("document %d of record %s: %w", index, rec.ID, ErrNotFound)
	}
	doc := rec.Documents[index]
	path := filepath.Join(s.recordDir(rec.ID), filepath.Base(doc.File))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", doc, fmt.Errorf("document file %s: %w", path, ErrNotFound)
		}
		return "", doc, err
	}
	return path, doc, nil
}

func (s *Store) removeDocuments(recordID string) {
	if err := os.RemoveAll(s.recordDir(recordID)); err != nil {
		s.log.Warn("failed to remove documents", slog.String("record", recordID), slog.Any("error", err))
	}
}
