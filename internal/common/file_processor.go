package common

import (
	"fmt"
	"os"
	"path/filepath"

	"cvmatch/internal/document"
	"cvmatch/internal/errors"
	"cvmatch/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	extractor *document.Extractor
	logger    *errors.Logger
}

// NewFileProcessor creates a new file processor instance. maxFileSize of 0 means unlimited.
func NewFileProcessor(maxFileSize int64, logger *errors.Logger) *FileProcessor {
	return &FileProcessor{
		extractor: document.NewExtractor(maxFileSize),
		logger:    logger,
	}
}

// ReadDocuments extracts the first-page text of every file, in order
func (fp *FileProcessor) ReadDocuments(filenames ...string) ([]string, error) {
	texts := make([]string, len(filenames))

	for i, filename := range filenames {
		doc, err := fp.extractor.ExtractFile(filename)
		if err != nil {
			return nil, err // already a document error
		}

		fp.logger.Debug("Document loaded",
			"filename", filename,
			"format", doc.Format,
			"mime", doc.MIME,
			"text_size", utils.FormatFileSize(int64(len(doc.Text))),
			"preview", utils.Preview(doc.Text, 60))

		texts[i] = doc.Text
	}

	return texts, nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		err := os.MkdirAll(dir, 0750)
		if err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	err := os.WriteFile(filename, []byte(content), 0600)
	if err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}
	return nil
}
