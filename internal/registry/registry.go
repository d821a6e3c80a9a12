// Package registry implements the language registry (spec.md §4.E):
// discovering tree-sitter-<name> grammar directories under configured
// parser dirs, compiling each grammar's C sources into a shared
// library on demand, loading it at runtime, and caching the resulting
// *sitter.Language together with its property sheet.
package registry

import (
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/maxbrunsfeld/tree-tags/internal/model"
	"github.com/maxbrunsfeld/tree-tags/internal/sheet"
)

const (
	packageJSONPath     = "package.json"
	parserCPath         = "src/parser.c"
	scannerCPath        = "src/scanner.c"
	scannerCCPath       = "src/scanner.cc"
	definitionsJSONPath = "src/definitions.json"
)

// dylibExtension returns the platform-native shared library suffix,
// mirroring the #[cfg(unix)]/#[cfg(windows)] split in
// original_source/src/language_registry.rs.
func dylibExtension() string {
	switch runtime.GOOS {
	case "windows":
		return "dll"
	case "darwin":
		return "dylib"
	default:
		return "so"
	}
}

// ErrNotApplicable is returned when no grammar claims a file
// extension, so internal/pipeline can skip the file rather than fail
// the whole run (spec.md §7).
var ErrNotApplicable = errors.New("registry: no language for extension")

// Language bundles what a loaded grammar contributes: the parser
// language itself and the property sheet that drives internal/walker.
type Language struct {
	Lang  *sitter.Language
	Sheet *sheet.Sheet
}

type grammarLocation struct {
	name string
	dir  string
}

// Registry discovers grammar directories once at startup, then
// compiles and loads grammars lazily, caching them by name. One
// Registry is shared (behind its mutex) by every indexer worker.
type Registry struct {
	configDir string
	cxx       string

	mu          sync.Mutex
	byExtension map[string]grammarLocation
	loaded      map[string]*Language
}

// New scans parserDirs for tree-sitter-<name> directories and records
// the file extensions each one claims via its package.json.
func New(configDir string, parserDirs []string, cxx string) (*Registry, error) {
	if cxx == "" {
		cxx = "c++"
	}
	r := &Registry{
		configDir:   configDir,
		cxx:         cxx,
		byExtension: make(map[string]grammarLocation),
		loaded:      make(map[string]*Language),
	}

	for _, parserDir := range parserDirs {
		entries, err := os.ReadDir(parserDir)
		if err != nil {
			return nil, model.IO(err)
		}
		for _, entry := range entries {
			if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "tree-sitter-") {
				continue
			}
			name := strings.TrimPrefix(entry.Name(), "tree-sitter-")
			dir := filepath.Join(parserDir, entry.Name())
			extensions, err := fileExtensionsForGrammar(dir)
			if err != nil {
				continue
			}
			for _, ext := range extensions {
				r.byExtension[ext] = grammarLocation{name: name, dir: dir}
			}
		}
	}

	return r, nil
}

// ForExtension returns the loaded Language for a file extension,
// compiling and loading its grammar on first use. ErrNotApplicable
// itself (not wrapped) is returned when no grammar claims the extension.
func (r *Registry) ForExtension(extension string) (*Language, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	loc, ok := r.byExtension[extension]
	if !ok {
		return nil, ErrNotApplicable
	}
	if lang, ok := r.loaded[loc.name]; ok {
		return lang, nil
	}
	return r.load(loc)
}

func (r *Registry) load(loc grammarLocation) (*Language, error) {
	libraryPath := filepath.Join(r.configDir, "lib", loc.name+"."+dylibExtension())

	if err := r.compileIfStale(loc, libraryPath); err != nil {
		return nil, model.IO(err)
	}

	handle, err := purego.Dlopen(libraryPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, model.IO(err)
	}

	var languageFn func() unsafe.Pointer
	purego.RegisterLibFunc(&languageFn, handle, "tree_sitter_"+loc.name)
	lang := sitter.NewLanguage(languageFn())

	sheetBytes, err := os.ReadFile(filepath.Join(loc.dir, definitionsJSONPath))
	if err != nil {
		return nil, model.IO(err)
	}
	propSheet, err := sheet.Parse(sheetBytes)
	if err != nil {
		return nil, model.IO(err)
	}

	result := &Language{Lang: lang, Sheet: propSheet}
	r.loaded[loc.name] = result
	return result, nil
}

// compileIfStale rebuilds the grammar's shared library when it is
// missing or older than its parser.c, mirroring the mtime check
// original_source/src/language_registry.rs performs before compiling.
func (r *Registry) compileIfStale(loc grammarLocation, libraryPath string) error {
	parserPath := filepath.Join(loc.dir, parserCPath)

	stale, err := isStale(parserPath, libraryPath)
	if err != nil {
		return err
	}
	if !stale {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(libraryPath), 0o755); err != nil {
		return err
	}

	args := []string{
		"-shared", "-fPIC",
		"-I", filepath.Join(loc.dir, "src"),
		"-o", libraryPath,
		"-xc", parserPath,
	}

	scannerC := filepath.Join(loc.dir, scannerCPath)
	scannerCC := filepath.Join(loc.dir, scannerCCPath)
	if _, err := os.Stat(scannerC); err == nil {
		args = append(args, "-xc", scannerC)
	} else if _, err := os.Stat(scannerCC); err == nil {
		args = append(args, "-xc++", scannerCC)
	}

	cmd := exec.Command(r.cxx, args...)
	return cmd.Run()
}

func isStale(parserPath, libraryPath string) (bool, error) {
	libInfo, err := os.Stat(libraryPath)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	parserInfo, err := os.Stat(parserPath)
	if err != nil {
		return false, err
	}
	return parserInfo.ModTime().After(libInfo.ModTime()), nil
}

func fileExtensionsForGrammar(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, packageJSONPath))
	if err != nil {
		return nil, err
	}

	var pkg struct {
		TreeSitter struct {
			FileTypes []string `json:"file-types"`
		} `json:"tree-sitter"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return pkg.TreeSitter.FileTypes, nil
}
