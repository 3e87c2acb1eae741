package app

import (
	"path/filepath"
	"strings"

	"coursehub/pkg/domain"
)

// kindSpec parameterizes the per-kind orchestration: which extensions the
// kind accepts and what content type to fall back to.
type kindSpec struct {
	extensions      map[string]struct{}
	fallbackContent string
}

var kindSpecs = map[domain.Kind]kindSpec{
	domain.KindVideo: {
		extensions:      extSet("mp4", "avi", "mov", "mkv"),
		fallbackContent: "video/mp4",
	},
	domain.KindPDF: {
		extensions:      extSet("pdf"),
		fallbackContent: "application/pdf",
	},
	domain.KindDocx: {
		extensions:      extSet("docx"),
		fallbackContent: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	},
	domain.KindAudio: {
		extensions:      extSet("mp3", "wav", "ogg"),
		fallbackContent: "audio/mpeg",
	},
}

func extSet(exts ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		out["."+ext] = struct{}{}
	}
	return out
}

func extensionAllowed(kind domain.Kind, filename string) bool {
	spec, ok := kindSpecs[kind]
	if !ok {
		return false
	}
	ext := strings.ToLower(filepath.Ext(filename))
	_, ok = spec.extensions[ext]
	return ok
}
