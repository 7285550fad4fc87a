package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pdfacil/pdfacil-backend/internal/editsession"
	"github.com/pdfacil/pdfacil-backend/internal/pdf"
	"github.com/pdfacil/pdfacil-backend/internal/pipeline"
	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
	"github.com/pdfacil/pdfacil-backend/pkg/httputil"
)

// EditUpload handles POST /api/edit/upload.
func (h *Handler) EditUpload(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.error(w, r, err)
		return
	}
	fh, err := formFile(r, "file")
	if err != nil {
		h.error(w, r, err)
		return
	}

	path, info, err := h.saveUpload(fh, pdfExts, pdfMIMEs)
	if err != nil {
		h.error(w, r, err)
		return
	}
	defer h.svc.Store().Remove(path)

	sess, err := h.svc.EditUpload(path, info.Filename, info.Size, r.UserAgent())
	if err != nil {
		h.error(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"pages":      sess.Meta.Pages,
	})
}

type fractionalRect struct {
	X float64 `json:"x" validate:"gte=0,lte=1"`
	Y float64 `json:"y" validate:"gte=0,lte=1"`
	W float64 `json:"w" validate:"gt=0,lte=1"`
	H float64 `json:"h" validate:"gt=0,lte=1"`
}

func (f fractionalRect) rect() pdf.Rect {
	return pdf.Rect{X: f.X, Y: f.Y, W: f.W, H: f.H}
}

type organizeAction struct {
	SessionID string      `json:"session_id" validate:"required"`
	Pages     []int       `json:"pages"`
	Rotations map[int]int `json:"rotations"`
}

type cropAction struct {
	SessionID string  `json:"session_id" validate:"required"`
	Page      int     `json:"page" validate:"gte=1"`
	X         float64 `json:"x" validate:"gte=0,lte=1"`
	Y         float64 `json:"y" validate:"gte=0,lte=1"`
	W         float64 `json:"w" validate:"gt=0,lte=1"`
	H         float64 `json:"h" validate:"gt=0,lte=1"`
}

type redactAction struct {
	SessionID string           `json:"session_id" validate:"required"`
	Page      int              `json:"page" validate:"gte=1"`
	Regions   []fractionalRect `json:"regions" validate:"required,min=1,dive"`
}

type textAction struct {
	SessionID string   `json:"session_id" validate:"required"`
	Page      int      `json:"page" validate:"gte=1"`
	X         float64  `json:"x" validate:"gte=0,lte=1"`
	Y         float64  `json:"y" validate:"gte=0,lte=1"`
	Text      string   `json:"text" validate:"required,max=500"`
	Font      string   `json:"font"`
	Size      float64  `json:"size" validate:"gt=0,lte=200"`
	Color     *pdf.RGB `json:"color"`
}

type ocrAction struct {
	SessionID   string `json:"session_id" validate:"required"`
	Lang        string `json:"lang"`
	Force       bool   `json:"force"`
	Deskew      bool   `json:"deskew"`
	RotatePages bool   `json:"rotate_pages"`
	Clean       bool   `json:"clean"`
	Confirm     bool   `json:"invalidate_signatures"`
}

type allAction struct {
	SessionID string                 `json:"session_id" validate:"required"`
	Pages     []int                  `json:"pages"`
	Rotations map[int]int            `json:"rotations"`
	Crops     map[int]fractionalRect `json:"crops" validate:"dive"`
}

// EditApply handles POST /api/edit/apply/{action}.
func (h *Handler) EditApply(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	sess, err := h.applyAction(r, action)
	if err != nil {
		h.error(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]any{
		"download_url":    "/api/edit/download/" + sess.ID,
		"filename":        downloadName(sess),
		"preview_refresh": "/api/edit/preview/" + sess.ID + ".png",
	})
}

func (h *Handler) applyAction(r *http.Request, action string) (*editsession.Session, error) {
	switch action {
	case "organize":
		var a organizeAction
		if err := decodeAction(r, &a); err != nil {
			return nil, err
		}
		sess, err := h.svc.Sessions().Get(a.SessionID)
		if err != nil {
			return nil, err
		}
		if len(a.Pages) == 0 && len(a.Rotations) == 0 {
			return nil, apperr.InvalidInput("Informe pages ou rotations.")
		}
		return sess, h.svc.EditOrganize(sess, a.Pages, a.Rotations)

	case "crop":
		var a cropAction
		if err := decodeAction(r, &a); err != nil {
			return nil, err
		}
		sess, err := h.svc.Sessions().Get(a.SessionID)
		if err != nil {
			return nil, err
		}
		return sess, h.svc.EditCrop(sess, a.Page, pdf.Rect{X: a.X, Y: a.Y, W: a.W, H: a.H})

	case "redact":
		var a redactAction
		if err := decodeAction(r, &a); err != nil {
			return nil, err
		}
		sess, err := h.svc.Sessions().Get(a.SessionID)
		if err != nil {
			return nil, err
		}
		regions := make([]pdf.Rect, len(a.Regions))
		for i, reg := range a.Regions {
			regions[i] = reg.rect()
		}
		return sess, h.svc.EditRedact(sess, a.Page, regions)

	case "text":
		var a textAction
		if err := decodeAction(r, &a); err != nil {
			return nil, err
		}
		sess, err := h.svc.Sessions().Get(a.SessionID)
		if err != nil {
			return nil, err
		}
		font := a.Font
		if font == "" {
			font = "Helvetica"
		}
		return sess, h.svc.EditText(sess, a.Page, a.X, a.Y, font, a.Size, a.Text, a.Color)

	case "ocr":
		var a ocrAction
		if err := decodeAction(r, &a); err != nil {
			return nil, err
		}
		sess, err := h.svc.Sessions().Get(a.SessionID)
		if err != nil {
			return nil, err
		}
		req := pipeline.OCRRequest{
			Force:             a.Force,
			Deskew:            a.Deskew,
			RotatePages:       a.RotatePages,
			Clean:             a.Clean,
			ConfirmInvalidate: a.Confirm,
		}
		if a.Lang != "" {
			req.Langs = strings.Split(a.Lang, "+")
		}
		return sess, h.svc.EditOCR(r.Context(), sess, req)

	case "all":
		var a allAction
		if err := decodeAction(r, &a); err != nil {
			return nil, err
		}
		sess, err := h.svc.Sessions().Get(a.SessionID)
		if err != nil {
			return nil, err
		}
		crops := make(map[int]pdf.Rect, len(a.Crops))
		for page, reg := range a.Crops {
			crops[page] = reg.rect()
		}
		return sess, h.svc.EditAll(sess, a.Pages, a.Rotations, crops)

	default:
		return nil, apperr.InvalidInput("Ação de edição desconhecida: " + action)
	}
}

// decodeAction decodes and validates the body.
func decodeAction(r *http.Request, v any) error {
	if err := httputil.DecodeJSON(r, v); err != nil {
		return err
	}
	return httputil.Validate(v)
}

// EditDownload handles GET /api/edit/download/{sessionID}: streams the
// session's working copy without finalizing the session.
func (h *Handler) EditDownload(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Sessions().Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	if err := httputil.SendFile(w, r, sess.CurrentPath(), downloadName(sess), false); err != nil {
		h.log.Error().Err(err).Str("session_id", sess.ID).Msg("edit download failed")
	}
}

// EditPreview handles GET /api/edit/preview/{sessionID}.png: a fresh
// first-page render of the working copy, never cached by the client.
func (h *Handler) EditPreview(w http.ResponseWriter, r *http.Request) {
	sess, err := h.svc.Sessions().Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		h.error(w, r, err)
		return
	}
	id, err := h.svc.Previews().Ensure(r.Context(), sess.CurrentPath())
	if err != nil {
		h.error(w, r, err)
		return
	}
	path, err := h.svc.Previews().Path(id)
	if err != nil {
		h.error(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}

// EditDiscard handles POST /api/edit/discard/{sessionID}.
func (h *Handler) EditDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Sessions().Discard(chi.URLParam(r, "sessionID")); err != nil {
		h.error(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

func downloadName(sess *editsession.Session) string {
	name := sess.Meta.OriginalName
	if name == "" {
		name = "documento.pdf"
	}
	return "editado_" + name
}
