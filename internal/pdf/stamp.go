package pdf

import (
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// RGB is a fill color with components in [0,1].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

var black = RGB{0, 0, 0}

// standard 14 base fonts accepted for text insertion.
var builtinFonts = map[string]bool{
	"Helvetica": true, "Helvetica-Bold": true, "Helvetica-Oblique": true, "Helvetica-BoldOblique": true,
	"Times-Roman": true, "Times-Bold": true, "Times-Italic": true, "Times-BoldItalic": true,
	"Courier": true, "Courier-Bold": true, "Courier-Oblique": true, "Courier-BoldOblique": true,
	"Symbol": true, "ZapfDingbats": true,
}

// Redact draws an opaque black rectangle over the fractional region of
// the given page and commits it into the content stream. It deliberately
// avoids annotation objects, which a later pass could strip.
func Redact(input, output string, page int, region Rect) error {
	if !region.valid() {
		return apperr.InvalidInput("região de tarja fora do intervalo")
	}
	ctx, err := api.ReadContextFile(input)
	if err != nil {
		return apperr.InvalidInput("Não foi possível abrir o PDF.").Wrap(err)
	}
	if page < 1 || page > ctx.PageCount {
		return pageOutOfRange(page, ctx.PageCount)
	}

	llx, lly, w, h, err := absoluteRegion(ctx, page, region)
	if err != nil {
		return err
	}
	ops := fmt.Sprintf("q 0 0 0 rg %.2f %.2f %.2f %.2f re f Q", llx, lly, w, h)
	if err := appendPageContent(ctx, page, []byte(ops)); err != nil {
		return err
	}

	if err := api.WriteContextFile(ctx, output); err != nil {
		return apperr.Internal("falha ao gravar PDF").Wrap(err)
	}
	return nil
}

// InsertText places a single line of text at the fractional (x,y)
// position of the page, top-left origin, using one of the built-in
// fonts. A nil color means black.
func InsertText(input, output string, page int, x, y float64, font string, size float64, text string, color *RGB) error {
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return apperr.InvalidInput("coordenadas de texto fora do intervalo")
	}
	if strings.TrimSpace(text) == "" {
		return apperr.InvalidInput("texto vazio")
	}
	if font == "" {
		font = "Helvetica"
	}
	if !builtinFonts[font] {
		return apperr.InvalidInput(fmt.Sprintf("fonte não suportada: %s", font))
	}
	if size <= 0 {
		size = 12
	}
	col := black
	if color != nil {
		col = *color
	}

	ctx, err := api.ReadContextFile(input)
	if err != nil {
		return apperr.InvalidInput("Não foi possível abrir o PDF.").Wrap(err)
	}
	if page < 1 || page > ctx.PageCount {
		return pageOutOfRange(page, ctx.PageCount)
	}

	resName, err := ensureFontResource(ctx, page, font)
	if err != nil {
		return err
	}

	_, _, attrs, err := ctx.PageDict(page, false)
	if err != nil {
		return apperr.Internal("falha ao acessar página").Wrap(err)
	}
	mb := attrs.MediaBox
	if mb == nil {
		return apperr.Internal("página sem MediaBox")
	}
	tx := mb.LL.X + x*mb.Width()
	ty := mb.UR.Y - y*mb.Height()

	ops := fmt.Sprintf("q BT %.3f %.3f %.3f rg /%s %.2f Tf %.2f %.2f Td (%s) Tj ET Q",
		col.R, col.G, col.B, resName, size, tx, ty, escapePDFString(text))
	if err := appendPageContent(ctx, page, []byte(ops)); err != nil {
		return err
	}

	if err := api.WriteContextFile(ctx, output); err != nil {
		return apperr.Internal("falha ao gravar PDF").Wrap(err)
	}
	return nil
}

func absoluteRegion(ctx *model.Context, page int, r Rect) (llx, lly, w, h float64, err error) {
	_, _, attrs, err := ctx.PageDict(page, false)
	if err != nil {
		return 0, 0, 0, 0, apperr.Internal("falha ao acessar página").Wrap(err)
	}
	mb := attrs.MediaBox
	if mb == nil {
		return 0, 0, 0, 0, apperr.Internal("página sem MediaBox")
	}
	pw, ph := mb.Width(), mb.Height()
	w = r.W * pw
	h = r.H * ph
	llx = mb.LL.X + r.X*pw
	lly = mb.UR.Y - r.Y*ph - h
	return llx, lly, w, h, nil
}

// appendPageContent adds a self-contained content stream after the
// page's existing content.
func appendPageContent(ctx *model.Context, page int, ops []byte) error {
	d, _, _, err := ctx.PageDict(page, false)
	if err != nil {
		return apperr.Internal("falha ao acessar página").Wrap(err)
	}

	sd, err := ctx.NewStreamDictForBuf(ops)
	if err != nil {
		return apperr.Internal("falha ao criar conteúdo").Wrap(err)
	}
	if err := sd.Encode(); err != nil {
		return apperr.Internal("falha ao codificar conteúdo").Wrap(err)
	}
	ir, err := ctx.IndRefForNewObject(*sd)
	if err != nil {
		return apperr.Internal("falha ao registrar conteúdo").Wrap(err)
	}

	switch contents := d["Contents"].(type) {
	case types.IndirectRef:
		d.Update("Contents", types.Array{contents, *ir})
	case types.Array:
		d.Update("Contents", append(contents, *ir))
	default:
		d.Update("Contents", *ir)
	}
	return nil
}

// ensureFontResource registers a built-in font on the page's resource
// dict and returns the resource name to reference it with.
func ensureFontResource(ctx *model.Context, page int, baseFont string) (string, error) {
	d, _, _, err := ctx.PageDict(page, false)
	if err != nil {
		return "", apperr.Internal("falha ao acessar página").Wrap(err)
	}

	resources, err := ctx.DereferenceDict(d["Resources"])
	if err != nil || resources == nil {
		resources = types.Dict{}
		d.Update("Resources", resources)
	}
	fonts, err := ctx.DereferenceDict(resources["Font"])
	if err != nil || fonts == nil {
		fonts = types.Dict{}
		resources.Update("Font", fonts)
	}

	fontDict := types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name(baseFont),
	}
	ir, err := ctx.IndRefForNewObject(fontDict)
	if err != nil {
		return "", apperr.Internal("falha ao registrar fonte").Wrap(err)
	}

	name := "Fpfx" + strings.ReplaceAll(baseFont, "-", "")
	fonts.Update(name, *ir)
	return name, nil
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`, "\n", `\n`, "\r", `\r`)
	return r.Replace(s)
}
