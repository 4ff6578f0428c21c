package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/uniagent/uniagent/pkg/logger"
)

// Inclusion failures are reported inline so the surrounding message still
// goes out; a bad {filename} token should not abort a whole turn.

const maxIncludeSize = 2 * 1024 * 1024

var includePattern = regexp.MustCompile(`\{([^{}]+)\}`)

var supportedExtensions = map[string]bool{
	".py": true, ".r": true, ".js": true, ".ts": true, ".jsx": true, ".tsx": true,
	".java": true, ".c": true, ".cpp": true, ".cc": true, ".cxx": true, ".h": true,
	".hpp": true, ".cs": true, ".php": true, ".rb": true, ".go": true, ".rs": true,
	".swift": true, ".kt": true, ".scala": true, ".clj": true, ".hs": true, ".ml": true,
	".fs": true, ".vb": true, ".pl": true, ".pm": true, ".sh": true, ".bash": true,
	".zsh": true, ".fish": true, ".ps1": true, ".bat": true, ".cmd": true, ".sql": true,
	".html": true, ".htm": true, ".css": true, ".scss": true, ".sass": true, ".less": true,
	".xml": true, ".xsl": true, ".xslt": true, ".json": true, ".yaml": true, ".yml": true,
	".toml": true, ".ini": true, ".cfg": true, ".conf": true, ".properties": true,
	".env": true, ".dockerfile": true, ".makefile": true, ".cmake": true, ".gradle": true,
	".lock": true, ".mod": true, ".sum": true,
	".md": true, ".markdown": true, ".rst": true, ".tex": true, ".csv": true, ".tsv": true,
	".jsonl": true, ".ndjson": true, ".svg": true,
	".tf": true, ".tfvars": true, ".hcl": true,
	".txt": true, ".log": true, ".out": true, ".err": true,
	".ipynb": true, ".jl": true, ".m": true,
	".graphql": true, ".gql": true, ".http": true,
	".editorconfig": true, ".gitignore": true, ".gitattributes": true, ".dockerignore": true,
}

// ExpandIncludes replaces {filename} tokens with the file's contents, looked
// up across searchDirs in order. Files get a language-appropriate header
// comment; missing, oversized, or unsupported files become inline error
// markers instead of failing the message.
func ExpandIncludes(text string, searchDirs []string) (string, error) {
	out := includePattern.ReplaceAllStringFunc(text, func(token string) string {
		name := token[1 : len(token)-1]
		return includeFile(name, searchDirs)
	})
	return out, nil
}

func includeFile(name string, searchDirs []string) string {
	if strings.Contains(name, "..") {
		logger.WarnCF("include", "Rejected path traversal", map[string]interface{}{"file": name})
		return fmt.Sprintf("[ERROR: Invalid file path %s]", name)
	}

	for _, dir := range searchDirs {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(name))
		if !supportedExtensions[ext] {
			logger.WarnCF("include", "Unsupported file type", map[string]interface{}{"file": name})
			return fmt.Sprintf("[WARNING: Unsupported file type %s]", name)
		}
		if info.Size() > maxIncludeSize {
			logger.ErrorCF("include", "File too large", map[string]interface{}{
				"file": name,
				"size": info.Size(),
			})
			return fmt.Sprintf("[ERROR: File %s too large (max 2MB)]", name)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.ErrorCF("include", "Read failed", map[string]interface{}{
				"file":  name,
				"error": err.Error(),
			})
			return fmt.Sprintf("[ERROR: Could not read %s: %v]", name, err)
		}

		logger.InfoCF("include", "Included file", map[string]interface{}{
			"file":  name,
			"chars": len(data),
		})
		return fileHeader(name, ext) + string(data)
	}

	logger.WarnCF("include", "File not found", map[string]interface{}{"file": name})
	return fmt.Sprintf("[ERROR: File %s not found]", name)
}

func fileHeader(name, ext string) string {
	switch ext {
	case ".py", ".r", ".sh", ".bash", ".zsh", ".fish", ".yaml", ".yml", ".toml":
		return fmt.Sprintf("# File: %s (%s)\n", name, ext)
	case ".html", ".htm", ".xml", ".md", ".markdown", ".svg":
		return fmt.Sprintf("<!-- File: %s (%s) -->\n", name, ext)
	case ".css", ".scss", ".sass", ".less":
		return fmt.Sprintf("/* File: %s (%s) */\n", name, ext)
	case ".sql":
		return fmt.Sprintf("-- File: %s (%s)\n", name, ext)
	default:
		return fmt.Sprintf("// File: %s (%s)\n", name, ext)
	}
}
