// Package extract turns uploaded study material into text or audio the models
// can consume.
package extract

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Category is the media bucket a file is routed by.
type Category string

const (
	CategoryAudio    Category = "audio"
	CategoryVideo    Category = "video"
	CategoryImage    Category = "image"
	CategoryDocument Category = "document"
	CategoryUnknown  Category = "unknown"
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePDF  = "application/pdf"
	mimeText = "text/plain"
)

var categories = map[string]Category{
	"audio/mpeg":      CategoryAudio,
	"audio/mp3":       CategoryAudio,
	"audio/wav":       CategoryAudio,
	"audio/x-wav":     CategoryAudio,
	"audio/x-m4a":     CategoryAudio,
	"audio/mp4":       CategoryAudio,
	"audio/ogg":       CategoryAudio,
	"audio/flac":      CategoryAudio,
	"video/mp4":       CategoryVideo,
	"video/mpeg":      CategoryVideo,
	"video/webm":      CategoryVideo,
	"video/quicktime": CategoryVideo,
	"image/png":       CategoryImage,
	"image/jpeg":      CategoryImage,
	"image/webp":      CategoryImage,
	"image/tiff":      CategoryImage,
	"image/bmp":       CategoryImage,
	mimeText:          CategoryDocument,
	mimePDF:           CategoryDocument,
	mimeDOCX:          CategoryDocument,
}

var extMIME = map[string]string{
	".txt":  mimeText,
	".pdf":  mimePDF,
	".docx": mimeDOCX,
}

// Detect sniffs the file content and returns its category and MIME type
// (without parameters). Generic container types fall back to the file
// extension for documents.
func Detect(path string) (Category, string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return CategoryUnknown, "", err
	}
	mime := baseMIME(m.String())
	if c, ok := categories[mime]; ok {
		return c, mime, nil
	}
	if byExt, ok := extMIME[strings.ToLower(filepath.Ext(path))]; ok {
		switch mime {
		case "application/zip", "application/octet-stream", "text/plain":
			return CategoryDocument, byExt, nil
		}
	}
	return CategoryUnknown, mime, nil
}

// CategoryOf maps a MIME type to its category.
func CategoryOf(mime string) Category {
	if c, ok := categories[baseMIME(mime)]; ok {
		return c
	}
	return CategoryUnknown
}

func baseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}
