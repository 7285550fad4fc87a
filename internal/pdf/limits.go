package pdf

import (
	"fmt"

	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// EnforcePageLimit opens the PDF and fails when its page count exceeds
// max. A max of zero disables the check. The count is returned either way.
func EnforcePageLimit(path string, max int) (int, error) {
	n, err := PageCount(path)
	if err != nil {
		return 0, err
	}
	if max > 0 && n > max {
		return n, apperr.TooLarge(fmt.Sprintf("O PDF tem %d páginas; o limite é %d.", n, max))
	}
	return n, nil
}

// EnforceTotalPages fails when the aggregate page count exceeds max.
func EnforceTotalPages(sum, max int) error {
	if max > 0 && sum > max {
		return apperr.TooLarge(fmt.Sprintf("Total de %d páginas excede o limite de %d.", sum, max))
	}
	return nil
}
