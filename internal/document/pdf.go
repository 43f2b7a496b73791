package document

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"cvmatch/internal/errors"
)

func firstPagePDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
				"malformed PDF", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			"failed to read PDF", err)
	}

	if reader.NumPage() == 0 {
		return "", errors.NewDocumentError(errors.ErrCodeDocumentEmpty, "the PDF has no pages", nil)
	}

	page := reader.Page(1)
	if page.V.IsNull() {
		return "", errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			"the first page of the PDF could not be read", nil)
	}

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			"failed to extract text from the first PDF page", err)
	}
	return text, nil
}
