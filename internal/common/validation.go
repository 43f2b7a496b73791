package common

import (
	"fmt"
	"slices"
	"strings"

	"cvmatch/internal/errors"
)

// ValidateOutputFormat checks format against the configured allow-list.
// An empty allow-list accepts any format; the formatter registry rejects unknown ones later.
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 || slices.Contains(supportedFormats, format) {
		return nil
	}
	return errors.NewValidationError(errors.ErrCodeInvalidFormat,
		fmt.Sprintf("unsupported output format '%s', expected one of: %s", format, strings.Join(supportedFormats, ", ")), nil)
}
