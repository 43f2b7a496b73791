package document

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"cvmatch/internal/errors"
)

func firstPageDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			"failed to read DOCX", err)
	}
	defer doc.Close()

	text, err := wordTextUntilPageBreak(doc.Editable().GetContent())
	if err != nil {
		return "", errors.NewDocumentError(errors.ErrCodeDocumentExtractionFailed,
			"failed to parse DOCX body", err)
	}
	return text, nil
}

// wordTextUntilPageBreak collects w:t runs of a WordprocessingML body,
// one line per paragraph, and stops at the first hard page break.
func wordTextUntilPageBreak(body string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(body))
	var (
		sb     strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br":
				if isPageBreak(t) {
					return sb.String(), nil
				}
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func isPageBreak(el xml.StartElement) bool {
	for _, attr := range el.Attr {
		if attr.Name.Local == "type" && attr.Value == "page" {
			return true
		}
	}
	return false
}
