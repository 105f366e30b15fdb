package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// MediaKind selects the job variant used for a source file.
type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindAudio MediaKind = "audio"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".avi": {}, ".mov": {}, ".mkv": {}, ".wmv": {}, ".flv": {}, ".webm": {},
}

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".wav": {}, ".ogg": {}, ".flac": {}, ".m4a": {}, ".aac": {},
}

// KindFromPath derives the media kind from a file extension.
func KindFromPath(path string) (MediaKind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := videoExtensions[ext]; ok {
		return MediaKindVideo, true
	}
	if _, ok := audioExtensions[ext]; ok {
		return MediaKindAudio, true
	}
	return "", false
}

// SupportedExtensions lists accepted extensions, video first.
func SupportedExtensions() []string {
	return []string{
		".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm",
		".mp3", ".wav", ".ogg", ".flac", ".m4a", ".aac",
	}
}

// MediaJob is one file accepted into a batch. Kind is fixed at construction.
type MediaJob struct {
	SourcePath      string    `json:"sourcePath"`
	Kind            MediaKind `json:"kind"`
	ModelName       string    `json:"modelName"`
	Language        string    `json:"language"`
	OutputDirectory string    `json:"outputDirectory"`
}

// NewMediaJob validates the extension and builds a job with an absolute path.
func NewMediaJob(sourcePath, modelName, language, outputDir string) (MediaJob, error) {
	kind, ok := KindFromPath(sourcePath)
	if !ok {
		return MediaJob{}, &Error{
			Kind:    KindValidation,
			Path:    sourcePath,
			Message: fmt.Sprintf("unsupported file format: %s", filepath.Ext(sourcePath)),
		}
	}

	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return MediaJob{}, &Error{
			Kind:    KindValidation,
			Path:    sourcePath,
			Message: "cannot resolve absolute path",
			Err:     err,
		}
	}

	return MediaJob{
		SourcePath:      abs,
		Kind:            kind,
		ModelName:       modelName,
		Language:        NormalizeLanguage(language),
		OutputDirectory: outputDir,
	}, nil
}

// AutoDetectLabel is shown wherever no language code was chosen.
const AutoDetectLabel = "auto-detect"

// NormalizeLanguage maps "auto" and empty values to the auto-detect sentinel "".
func NormalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") || strings.EqualFold(lang, AutoDetectLabel) {
		return ""
	}
	return lang
}
