package api

import (
	"net/http"
	"strings"
)

var convertExts = []string{
	".jpg", ".jpeg", ".png",
	".csv", ".xls", ".xlsx",
	".doc", ".docx", ".odt", ".rtf", ".txt", ".html",
	".ppt", ".pptx", ".odp",
}

var convertMIMEs = []string{
	"image/jpeg",
	"image/png",
	"text/plain",
	"text/csv",
	"text/html",
	"application/rtf",
	"text/rtf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.oasis.opendocument.text",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"application/vnd.oasis.opendocument.presentation",
	// Office XML containers sniff as plain ZIP when the inner
	// [Content_Types].xml is unusual.
	"application/zip",
}

// Convert handles POST /api/convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	if err := h.parseMultipart(w, r); err != nil {
		h.error(w, r, err)
		return
	}
	fh, err := formFile(r, "file")
	if err != nil {
		h.error(w, r, err)
		return
	}

	path, info, err := h.saveUpload(fh, convertExts, convertMIMEs)
	if err != nil {
		h.error(w, r, err)
		return
	}
	defer h.svc.Store().Remove(path)

	out, err := h.svc.Convert(r.Context(), path, strings.TrimPrefix(info.Ext, "."))
	if err != nil {
		h.error(w, r, err)
		return
	}
	h.sendAndRemove(w, r, out, outputName(info.Filename, "convertido", ".pdf"), false)
}
