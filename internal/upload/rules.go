package upload

import (
	"mime"
	"strings"
)

const (
	DirImages = "imagenes"
	DirPDFs   = "pdfs"
	DirSounds = "sounds"
	DirOther  = "otros"

	MaxAudioSize       = 5 * 1024 * 1024
	MaxFilesPerRequest = 10
)

var audioTypes = []string{
	"audio/mpeg",
	"audio/mp3",
	"audio/wav",
	"audio/x-wav",
	"audio/ogg",
	"audio/webm",
}

var generalTypes = append([]string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
}, audioTypes...)

// Rules constrain one upload request.
type Rules struct {
	Name     string
	Allowed  map[string]struct{}
	MaxSize  int64
	MaxFiles int
}

func newRules(name string, types []string, maxSize int64, maxFiles int) Rules {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return Rules{Name: name, Allowed: allowed, MaxSize: maxSize, MaxFiles: maxFiles}
}

// AudioRules accept exactly one audio clip of at most 5 MB.
func AudioRules() Rules {
	return newRules("audio", audioTypes, MaxAudioSize, 1)
}

// GeneralRules accept images, PDFs and audio up to maxSize, ten files per request.
func GeneralRules(maxSize int64) Rules {
	return newRules("general", generalTypes, maxSize, MaxFilesPerRequest)
}

func (r Rules) allows(contentType string) bool {
	_, ok := r.Allowed[contentType]
	return ok
}

// normalizeType strips parameters and lowercases a Content-Type value.
func normalizeType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

// categoryDir picks the storage subdirectory for a media type.
func categoryDir(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return DirImages
	case contentType == "application/pdf":
		return DirPDFs
	case strings.HasPrefix(contentType, "audio/"):
		return DirSounds
	default:
		return DirOther
	}
}
