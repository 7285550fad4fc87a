package pdf

import (
	"bytes"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// sigScanWindow bounds the fallback prefix scan.
const sigScanWindow = 256 << 10

// IsSigned reports whether the PDF carries a digital signature: either
// an AcroForm field with /FT /Sig, or /ByteRange and /Sig markers inside
// the first 256 KiB. The file is never modified. False negatives are a
// correctness bug, so the byte scan runs even when parsing succeeds but
// finds no signature field.
func IsSigned(path string) (bool, error) {
	if ctx, err := api.ReadContextFile(path); err == nil {
		if hasSignatureField(ctx) {
			return true, nil
		}
	}
	return hasSignatureMarkers(path)
}

func hasSignatureField(ctx *model.Context) bool {
	root, err := ctx.Catalog()
	if err != nil {
		return false
	}
	acro, err := ctx.DereferenceDict(root["AcroForm"])
	if err != nil || acro == nil {
		return false
	}
	return fieldTreeHasSig(ctx, acro["Fields"])
}

func fieldTreeHasSig(ctx *model.Context, fields types.Object) bool {
	arr, err := ctx.DereferenceArray(fields)
	if err != nil || arr == nil {
		return false
	}
	for _, f := range arr {
		d, err := ctx.DereferenceDict(f)
		if err != nil || d == nil {
			continue
		}
		if ft, found := d.Find("FT"); found {
			if name, ok := ft.(types.Name); ok && name == "Sig" {
				return true
			}
		}
		if kids, found := d.Find("Kids"); found && fieldTreeHasSig(ctx, kids) {
			return true
		}
	}
	return false
}

func hasSignatureMarkers(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sigScanWindow)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err
	}
	buf = buf[:n]
	return bytes.Contains(buf, []byte("/ByteRange")) && bytes.Contains(buf, []byte("/Sig")), nil
}
