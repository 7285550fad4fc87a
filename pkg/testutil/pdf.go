package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// PDFBytes builds a minimal but well-formed PDF with the given number of
// pages, one 612x792 media box each. The cross-reference table is computed
// from the actual byte offsets so strict parsers accept the result.
func PDFBytes(pages int) []byte {
	return PDFBytesWithMediaBoxes(uniformBoxes(pages))
}

// PDFBytesWithMediaBoxes builds a PDF with one page per media box
// [llx lly urx ury].
func PDFBytesWithMediaBoxes(boxes [][4]float64) []byte {
	pages := len(boxes)

	kids := make([]string, pages)
	for i := 0; i < pages; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 3+2*i)
	}

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
	}
	for i, b := range boxes {
		objs = append(objs, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [%g %g %g %g] /Resources << >> /Contents %d 0 R >>",
			b[0], b[1], b[2], b[3], 4+2*i))
		content := fmt.Sprintf("q 1 0 0 1 0 0 cm Q %% page %d", i+1)
		objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objs)+1)
	for i, body := range objs {
		offsets[i+1] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objs); i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func uniformBoxes(pages int) [][4]float64 {
	boxes := make([][4]float64, pages)
	for i := range boxes {
		boxes[i] = [4]float64{0, 0, 612, 792}
	}
	return boxes
}

// WritePDF writes an n-page PDF into dir and returns its path.
func WritePDF(t *testing.T, dir, name string, pages int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, PDFBytes(pages), 0o644); err != nil {
		t.Fatalf("write test pdf: %v", err)
	}
	return path
}
