// Package pdf implements the in-process PDF operations: page selection
// and reordering, absolute rotation, crop/media box edits, redaction,
// text stamping, merge, sanitizing and the signature probe. Page indices
// are 1-based at this API surface. All coordinate inputs are fractions
// in [0,1] of the page width/height with a top-left origin.
package pdf

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

func conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = model.ValidationRelaxed
	return c
}

// Rect is a fractional rectangle with top-left origin.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) valid() bool {
	return r.X >= 0 && r.Y >= 0 && r.W > 0 && r.H > 0 &&
		r.X+r.W <= 1.0001 && r.Y+r.H <= 1.0001
}

// Transform describes one pass of the primitive operation set.
type Transform struct {
	// Pages is a 1-based sequence defining output order and selection.
	// Empty keeps every page in the original order. Deletion is
	// expressed by omission.
	Pages []int
	// Rotations maps 1-based original index to an absolute rotation in
	// {0, 90, 180, 270}.
	Rotations map[int]int
	// Crops maps 1-based original index to a fractional rectangle,
	// applied to both the crop and media boxes.
	Crops map[int]Rect
	// Strict fails the operation on any index outside [1,N]; otherwise
	// invalid indices are silently skipped.
	Strict bool
}

// PageCount returns the number of pages of a PDF file.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, apperr.InvalidInput("Não foi possível abrir o PDF.").Wrap(err)
	}
	return n, nil
}

// Apply runs a Transform from input to output. Rotations and crops are
// indexed against the original document and applied before selection, so
// the resulting output pages carry them regardless of output order.
func Apply(input, output string, t Transform) error {
	ctx, err := api.ReadContextFile(input)
	if err != nil {
		return apperr.InvalidInput("Não foi possível abrir o PDF.").Wrap(err)
	}
	n := ctx.PageCount

	pages, err := checkIndices(t.Pages, n, t.Strict)
	if err != nil {
		return err
	}

	for _, deg := range t.Rotations {
		if deg != 0 && deg != 90 && deg != 180 && deg != 270 {
			return apperr.InvalidInput(fmt.Sprintf("rotação inválida: %d", deg))
		}
	}
	for nr, r := range t.Crops {
		if !r.valid() {
			return apperr.InvalidInput(fmt.Sprintf("recorte fora do intervalo na página %d", nr))
		}
	}

	for _, nr := range sortedKeys(t.Rotations) {
		if nr < 1 || nr > n {
			if t.Strict {
				return pageOutOfRange(nr, n)
			}
			continue
		}
		if err := setRotation(ctx, nr, t.Rotations[nr]); err != nil {
			return err
		}
	}
	for _, nr := range sortedCropKeys(t.Crops) {
		if nr < 1 || nr > n {
			if t.Strict {
				return pageOutOfRange(nr, n)
			}
			continue
		}
		if err := setCropFraction(ctx, nr, t.Crops[nr]); err != nil {
			return err
		}
	}

	tmp := scratchSibling(output)
	if err := api.WriteContextFile(ctx, tmp); err != nil {
		return apperr.Internal("falha ao gravar PDF").Wrap(err)
	}

	if len(pages) == 0 {
		return os.Rename(tmp, output)
	}
	defer os.Remove(tmp)
	if err := api.CollectFile(tmp, output, pageStrings(pages), conf()); err != nil {
		return apperr.Internal("falha ao selecionar páginas").Wrap(err)
	}
	return nil
}

// RotateDelta rotates the given pages (all pages when empty) by angle
// degrees relative to their current rotation, modulo 360.
func RotateDelta(input, output string, pages []int, angle int) error {
	if angle%90 != 0 {
		return apperr.InvalidInput(fmt.Sprintf("rotação inválida: %d", angle))
	}
	angle = ((angle % 360) + 360) % 360
	if angle == 0 {
		return copyFile(input, output)
	}

	n, err := PageCount(input)
	if err != nil {
		return err
	}
	pages, err = checkIndices(pages, n, false)
	if err != nil {
		return err
	}
	var sel []string
	if len(pages) > 0 {
		sel = pageStrings(pages)
	}
	if err := api.RotateFile(input, output, angle, sel, conf()); err != nil {
		return apperr.Internal("falha ao rotacionar páginas").Wrap(err)
	}
	return nil
}

// Merge concatenates the inputs, in order, into output.
func Merge(inputs []string, output string) error {
	if len(inputs) == 0 {
		return apperr.InvalidInput("nenhum arquivo para juntar")
	}
	if err := api.MergeCreateFile(inputs, output, false, conf()); err != nil {
		return apperr.Internal("falha ao juntar PDFs").Wrap(err)
	}
	return nil
}

// ExtractPage writes a single 1-based page of input to output.
func ExtractPage(input, output string, page int) error {
	if err := api.TrimFile(input, output, []string{strconv.Itoa(page)}, conf()); err != nil {
		return apperr.Internal("falha ao extrair página").Wrap(err)
	}
	return nil
}

// Optimize rewrites the PDF through pdfcpu's optimizer.
func Optimize(input, output string) error {
	if err := api.OptimizeFile(input, output, conf()); err != nil {
		return apperr.Internal("falha ao otimizar PDF").Wrap(err)
	}
	return nil
}

// FromImages builds a PDF with one page per input image.
func FromImages(images []string, output string) error {
	if err := api.ImportImagesFile(images, output, nil, conf()); err != nil {
		return apperr.InvalidInput("imagem inválida ou não suportada").Wrap(err)
	}
	return nil
}

// CropAbsolute sets the crop and media boxes of one page to an absolute
// rectangle [x0 y0 x1 y1] in page-local points.
func CropAbsolute(input, output string, page int, box [4]float64) error {
	ctx, err := api.ReadContextFile(input)
	if err != nil {
		return apperr.InvalidInput("Não foi possível abrir o PDF.").Wrap(err)
	}
	if page < 1 || page > ctx.PageCount {
		return pageOutOfRange(page, ctx.PageCount)
	}
	if box[2] <= box[0] || box[3] <= box[1] {
		return apperr.InvalidInput("caixa de recorte inválida")
	}
	if err := setBoxes(ctx, page, box[0], box[1], box[2], box[3]); err != nil {
		return err
	}
	if err := api.WriteContextFile(ctx, output); err != nil {
		return apperr.Internal("falha ao gravar PDF").Wrap(err)
	}
	return nil
}

func setRotation(ctx *model.Context, pageNr, deg int) error {
	d, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return apperr.Internal("falha ao acessar página").Wrap(err)
	}
	d.Update("Rotate", types.Integer(deg))
	return nil
}

func setCropFraction(ctx *model.Context, pageNr int, r Rect) error {
	_, _, attrs, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return apperr.Internal("falha ao acessar página").Wrap(err)
	}
	mb := attrs.MediaBox
	if mb == nil {
		return apperr.Internal("página sem MediaBox")
	}
	w, h := mb.Width(), mb.Height()
	llx := mb.LL.X + r.X*w
	ury := mb.UR.Y - r.Y*h
	urx := llx + r.W*w
	lly := ury - r.H*h
	return setBoxes(ctx, pageNr, llx, lly, urx, ury)
}

func setBoxes(ctx *model.Context, pageNr int, llx, lly, urx, ury float64) error {
	d, _, _, err := ctx.PageDict(pageNr, false)
	if err != nil {
		return apperr.Internal("falha ao acessar página").Wrap(err)
	}
	box := types.NewNumberArray(llx, lly, urx, ury)
	d.Update("MediaBox", box)
	d.Update("CropBox", box)
	return nil
}

func checkIndices(pages []int, n int, strict bool) ([]int, error) {
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > n {
			if strict {
				return nil, pageOutOfRange(p, n)
			}
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func pageOutOfRange(p, n int) error {
	return apperr.InvalidInput(fmt.Sprintf("página %d fora do intervalo [1,%d]", p, n))
}

func pageStrings(pages []int) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = strconv.Itoa(p)
	}
	return out
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func sortedCropKeys(m map[int]Rect) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func scratchSibling(path string) string {
	nonce := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return path + ".tmp-" + nonce
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
