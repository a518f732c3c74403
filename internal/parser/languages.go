// internal/parser/languages.go
package parser

import (
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	gosrc "github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/html"
	jssrc "github.com/smacker/go-tree-sitter/javascript"
	pythonsrc "github.com/smacker/go-tree-sitter/python"
	rustsrc "github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/yaml"

	"github.com/bethropolis/treesync/internal/logger"
)

// Language associates a tree-sitter grammar with file extensions.
type Language struct {
	Name           string
	TreeSitterLang *sitter.Language
	Extensions     []string
}

var (
	registry struct {
		sync.RWMutex
		languages     []*Language
		extToLanguage map[string]*Language
	}
	initOnce sync.Once
)

func initialize() {
	initOnce.Do(func() {
		registry.extToLanguage = make(map[string]*Language)
		registry.languages = make([]*Language, 0)
	})
}

// Register adds a language to the registry.
func Register(lang *Language) {
	initialize()

	registry.Lock()
	defer registry.Unlock()

	registry.languages = append(registry.languages, lang)
	for _, ext := range lang.Extensions {
		lowerExt := strings.ToLower(ext)
		if existing, ok := registry.extToLanguage[lowerExt]; ok {
			logger.Warnf("Extension %s already registered to %s, overriding with %s",
				lowerExt, existing.Name, lang.Name)
		}
		registry.extToLanguage[lowerExt] = lang
	}
}

// GetForFile returns the language for a given file path, or nil if the
// extension is not registered.
func GetForFile(filePath string) *Language {
	initialize()

	registry.RLock()
	defer registry.RUnlock()

	ext := strings.ToLower(filepath.Ext(filePath))
	return registry.extToLanguage[ext]
}

// GetAll returns all registered languages.
func GetAll() []*Language {
	initialize()

	registry.RLock()
	defer registry.RUnlock()

	result := make([]*Language, len(registry.languages))
	copy(result, registry.languages)
	return result
}

// RegisterDefaults registers the embedded grammars.
func RegisterDefaults() {
	logger.Debugf("Registering languages...")

	Register(&Language{
		Name:           "Go",
		TreeSitterLang: gosrc.GetLanguage(),
		Extensions:     []string{".go"},
	})
	Register(&Language{
		Name:           "Python",
		TreeSitterLang: pythonsrc.GetLanguage(),
		Extensions:     []string{".py", ".pyw"},
	})
	Register(&Language{
		Name:           "JavaScript",
		TreeSitterLang: jssrc.GetLanguage(),
		Extensions:     []string{".js", ".mjs", ".cjs"},
	})
	// JSON parses fine with the JS grammar.
	Register(&Language{
		Name:           "JSON",
		TreeSitterLang: jssrc.GetLanguage(),
		Extensions:     []string{".json"},
	})
	Register(&Language{
		Name:           "Rust",
		TreeSitterLang: rustsrc.GetLanguage(),
		Extensions:     []string{".rs"},
	})
	Register(&Language{
		Name:           "Bash",
		TreeSitterLang: bash.GetLanguage(),
		Extensions:     []string{".sh", ".bash"},
	})
	Register(&Language{
		Name:           "YAML",
		TreeSitterLang: yaml.GetLanguage(),
		Extensions:     []string{".yml", ".yaml"},
	})
	Register(&Language{
		Name:           "HTML",
		TreeSitterLang: html.GetLanguage(),
		Extensions:     []string{".html", ".htm"},
	})

	logger.Debugf("Registration complete. Registered %d languages.", len(GetAll()))
}
