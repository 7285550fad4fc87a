// Package upload owns the untrusted-file boundary: multipart validation
// (extension, content-sniffed MIME, declared MIME cross-check, filename
// normalization) and the scratch-directory store with TTL garbage
// collection.
package upload

import (
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperr "github.com/pdfacil/pdfacil-backend/pkg/errors"
)

// sniffLen is how much of the file the content sniffer reads.
const sniffLen = 8 << 10

const maxFilenameLen = 128

var filenameRe = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// extMIME maps accepted extensions to their canonical MIME type, used
// for the declared-type conflict check.
var extMIME = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".html": "text/html",
	".rtf":  "application/rtf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":  "application/vnd.oasis.opendocument.text",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odp":  "application/vnd.oasis.opendocument.presentation",
}

// Info describes a validated upload. Nothing has touched the disk yet.
type Info struct {
	// Filename is the canonical, normalized name.
	Filename string
	// Ext is the lowercase extension including the dot.
	Ext string
	// MIME is the content-sniffed media type.
	MIME string
	// Size is the declared upload size in bytes.
	Size int64
}

// Validate checks an uploaded file header against the allow-lists. The
// sniffed MIME must be in allowedMIMEs, and a browser-declared MIME that
// conflicts with both the sniffed and the extension-derived type rejects
// the upload. Returns the canonical filename and sniffed type.
func Validate(fh *multipart.FileHeader, allowedExts, allowedMIMEs []string) (*Info, error) {
	name := NormalizeFilename(fh.Filename)
	ext := strings.ToLower(filepath.Ext(name))

	if !contains(allowedExts, ext) {
		return nil, apperr.InvalidInput("Extensão de arquivo não permitida.")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperr.InvalidInput("Não foi possível ler o arquivo enviado.").Wrap(err)
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, apperr.InvalidInput("Não foi possível ler o arquivo enviado.").Wrap(err)
	}
	sniffed := mimetype.Detect(buf[:n])

	if !mimeAllowed(sniffed, allowedMIMEs) {
		return nil, apperr.InvalidInput("Tipo de arquivo não permitido.")
	}

	if declared := mediaType(fh.Header.Get("Content-Type")); declared != "" {
		matchesSniffed := sniffed.Is(declared)
		matchesExt := declared == extMIME[ext]
		if !matchesSniffed && !matchesExt {
			return nil, apperr.InvalidInput("Tipo declarado não confere com o conteúdo.")
		}
	}

	return &Info{
		Filename: name,
		Ext:      ext,
		MIME:     sniffed.String(),
		Size:     fh.Size,
	}, nil
}

// NormalizeFilename restricts a declared filename to [A-Za-z0-9_.-],
// caps it at 128 bytes and maps empties to "file".
func NormalizeFilename(name string) string {
	name = filepath.Base(name)
	name = filenameRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, ".")
	if len(name) > maxFilenameLen {
		ext := filepath.Ext(name)
		keep := maxFilenameLen - len(ext)
		if keep < 1 {
			name = name[:maxFilenameLen]
		} else {
			name = name[:keep] + ext
		}
	}
	if name == "" || name == "_" {
		return "file"
	}
	return name
}

func mimeAllowed(m *mimetype.MIME, allowed []string) bool {
	for _, a := range allowed {
		if m.Is(a) {
			return true
		}
	}
	// text/csv uploads routinely sniff as text/plain and vice versa.
	for _, a := range allowed {
		if strings.HasPrefix(a, "text/") && strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}

func mediaType(v string) string {
	if v == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
