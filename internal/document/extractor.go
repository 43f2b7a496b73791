// Package document turns an uploaded résumé or job posting into plain text.
// Only the first page is kept.
package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"cvmatch/internal/errors"
)

// Format is the detected container of a document
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatText Format = "text"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain"
)

// Document is the text recovered from the first page of a file
type Document struct {
	Name   string
	Format Format
	MIME   string
	Text   string
}

// Extractor reads documents from disk or memory
type Extractor struct {
	// MaxFileSize in bytes, 0 means unlimited
	MaxFileSize int64
}

func NewExtractor(maxFileSize int64) *Extractor {
	return &Extractor{MaxFileSize: maxFileSize}
}

// ExtractFile returns the first-page text of the file at path
func (e *Extractor) ExtractFile(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, errors.NewDocumentError(errors.ErrCodeDocumentNotFound,
				fmt.Sprintf("file %s does not exist", path), err).
				WithContext(errors.ContextPath, path)
		}
		return Document{}, errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			fmt.Sprintf("cannot access %s", path), err).
			WithContext(errors.ContextPath, path)
	}
	if info.IsDir() {
		return Document{}, errors.NewDocumentError(errors.ErrCodeDocumentNotFound,
			fmt.Sprintf("%s is a directory", path), nil).
			WithContext(errors.ContextPath, path)
	}
	if e.MaxFileSize > 0 && info.Size() > e.MaxFileSize {
		return Document{}, errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			fmt.Sprintf("file %s is too large (%d bytes, limit %d)", path, info.Size(), e.MaxFileSize), nil).
			WithContext(errors.ContextPath, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			fmt.Sprintf("cannot read %s", path), err).
			WithContext(errors.ContextPath, path)
	}

	return e.Extract(filepath.Base(path), data)
}

// Extract returns the first-page text of an in-memory document.
// name is only used for the extension fallback and error messages.
func (e *Extractor) Extract(name string, data []byte) (Document, error) {
	if len(data) == 0 {
		return Document{}, errors.NewDocumentError(errors.ErrCodeDocumentEmpty,
			fmt.Sprintf("%s is empty", name), nil)
	}
	if e.MaxFileSize > 0 && int64(len(data)) > e.MaxFileSize {
		return Document{}, errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			fmt.Sprintf("%s is too large (%d bytes, limit %d)", name, len(data), e.MaxFileSize), nil)
	}

	format, mime := DetectFormat(name, data)

	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = firstPagePDF(data)
	case FormatDOCX:
		text, err = firstPageDOCX(data)
	case FormatText:
		text = firstPageText(data)
	default:
		return Document{}, errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			fmt.Sprintf("unsupported document type %s for %s", mime, name), nil)
	}
	if err != nil {
		return Document{}, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Document{}, errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			fmt.Sprintf("no text could be extracted from the first page of %s", name), nil)
	}

	return Document{Name: name, Format: format, MIME: mime, Text: text}, nil
}

// DetectFormat sniffs the content and falls back to the file extension
func DetectFormat(name string, data []byte) (Format, string) {
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is(mimePDF):
			return FormatPDF, mt.String()
		case m.Is(mimeDOCX):
			return FormatDOCX, mt.String()
		case m.Is(mimeText):
			return FormatText, mt.String()
		}
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, mimePDF
	case ".docx":
		return FormatDOCX, mimeDOCX
	case ".txt", ".md", ".text":
		if utf8.Valid(data) {
			return FormatText, mimeText
		}
	}
	return "", mt.String()
}

// firstPageText keeps everything before the first form feed
func firstPageText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if i := bytes.IndexByte(data, '\f'); i >= 0 {
		data = data[:i]
	}
	return string(data)
}
