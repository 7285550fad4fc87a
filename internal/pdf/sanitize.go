package pdf

import (
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// Sanitize strips active content from input into output: root
// /OpenAction and /AA, /Names /JavaScript and /EmbeddedFiles, /AcroForm
// /XFA and /JS, per-field /AA and per-page /Annots. Removals of absent
// entries are silently skipped; the only hard failure is a document that
// cannot be opened. The output is rewritten through the optimizer so a
// second pass yields the same content.
func Sanitize(input, output string) error {
	ctx, err := api.ReadContextFile(input)
	if err != nil {
		return apperr.InvalidInput("Não foi possível abrir o PDF.").Wrap(err)
	}

	root, err := ctx.Catalog()
	if err != nil {
		return apperr.InvalidInput("Não foi possível abrir o PDF.").Wrap(err)
	}

	root.Delete("OpenAction")
	root.Delete("AA")

	if names, err := ctx.DereferenceDict(root["Names"]); err == nil && names != nil {
		names.Delete("JavaScript")
		names.Delete("EmbeddedFiles")
	}

	if acro, err := ctx.DereferenceDict(root["AcroForm"]); err == nil && acro != nil {
		acro.Delete("XFA")
		acro.Delete("JS")
		stripFieldActions(ctx, acro["Fields"])
	}

	for nr := 1; nr <= ctx.PageCount; nr++ {
		if d, _, _, err := ctx.PageDict(nr, false); err == nil && d != nil {
			d.Delete("Annots")
		}
	}

	tmp := scratchSibling(output)
	defer os.Remove(tmp)
	if err := api.WriteContextFile(ctx, tmp); err != nil {
		return apperr.Internal("falha ao gravar PDF").Wrap(err)
	}
	if err := api.OptimizeFile(tmp, output, conf()); err != nil {
		return apperr.Internal("falha ao otimizar PDF").Wrap(err)
	}
	return nil
}

// stripFieldActions removes /AA from every form field, following Kids.
func stripFieldActions(ctx *model.Context, fields types.Object) {
	arr, err := ctx.DereferenceArray(fields)
	if err != nil || arr == nil {
		return
	}
	for _, f := range arr {
		d, err := ctx.DereferenceDict(f)
		if err != nil || d == nil {
			continue
		}
		d.Delete("AA")
		if kids, found := d.Find("Kids"); found {
			stripFieldActions(ctx, kids)
		}
	}
}
