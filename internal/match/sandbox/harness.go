package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	appErr "codebattle/pkg/errors"
)

// Harness combines a player's source with the per-language runner template,
// producing the full program the judge executes.
type Harness interface {
	Combine(language, source string) (string, error)
}

const userCodeMarker = "%USER_CODE%"

// runnerFiles maps a normalized language to its runner template file name.
var runnerFiles = map[string]string{
	"python":     "python_runner.py",
	"java":       "java_runner.txt",
	"cpp":        "cpp_runner.cpp",
	"c":          "c_runner.c",
	"javascript": "js_runner.js",
}

// sourceExtensions maps a normalized language to the player source extension.
var sourceExtensions = map[string]string{
	"python":     ".py",
	"java":       ".java",
	"cpp":        ".cpp",
	"c":          ".c",
	"javascript": ".js",
}

// NormalizeLanguage folds aliases onto the canonical language id.
// Returns ok=false for anything outside the supported set.
func NormalizeLanguage(language string) (string, bool) {
	switch strings.ToLower(language) {
	case "python":
		return "python", true
	case "java":
		return "java", true
	case "c":
		return "c", true
	case "cpp":
		return "cpp", true
	case "javascript", "node", "nodejs":
		return "javascript", true
	default:
		return "", false
	}
}

// SourceFileName returns the file name the judge expects for a role's source.
// Java submissions must compile as Main.
func SourceFileName(role, language string) (string, error) {
	lang, ok := NormalizeLanguage(language)
	if !ok {
		return "", appErr.Newf(appErr.UnsupportedLanguage, "unsupported language: %s", language)
	}
	if lang == "java" {
		return "Main.java", nil
	}
	return role + sourceExtensions[lang], nil
}

// FileHarness loads runner templates from a directory, caching after the
// first read.
type FileHarness struct {
	dir string

	mu    sync.Mutex
	cache map[string]string
}

// NewFileHarness creates a harness reading templates from dir.
func NewFileHarness(dir string) *FileHarness {
	return &FileHarness{dir: dir, cache: make(map[string]string)}
}

// Combine substitutes the user source into the language's runner template.
func (h *FileHarness) Combine(language, source string) (string, error) {
	lang, ok := NormalizeLanguage(language)
	if !ok {
		return "", appErr.Newf(appErr.UnsupportedLanguage, "unsupported language: %s", language)
	}
	template, err := h.load(runnerFiles[lang])
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(template, userCodeMarker, source), nil
}

func (h *FileHarness) load(filename string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cached, ok := h.cache[filename]; ok {
		return cached, nil
	}
	data, err := os.ReadFile(filepath.Join(h.dir, filename))
	if err != nil {
		return "", appErr.Wrapf(err, appErr.HarnessLoadFailed, "load runner template %s failed", filename)
	}
	h.cache[filename] = string(data)
	return string(data), nil
}
