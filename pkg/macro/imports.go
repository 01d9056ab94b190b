package macro

import (
	"fmt"
	"path/filepath"

	"github.com/beevik/etree"
)

// ImportedMacroPaths returns the raw import paths declared on root's macro
// container, unresolved, in declaration order. It does not recurse into
// the imported files.
func ImportedMacroPaths(root *etree.Element) []string {
	return importedMacroPathsFromEl(macrosEl(root))
}

func importedMacroPathsFromEl(container *etree.Element) []string {
	if container == nil {
		return nil
	}
	var paths []string
	for _, el := range container.SelectElements(TagImport) {
		paths = append(paths, el.Text())
	}
	return paths
}

// importMacros resolves root's import declarations relative to the
// directory of path, merges every reachable macro definition into the
// container (imports before embedded, so local definitions override
// imported ones of the same name), and returns the transitive list of
// imported file paths in depth-first declaration order. The container's
// children are destructively replaced by the merged, normalized macro
// list.
func importMacros(root *etree.Element, path string) ([]string, error) {
	container := macrosEl(root)
	if container == nil {
		return nil, nil
	}
	loading := map[string]bool{filepath.Clean(path): true}
	macroEls, macroPaths, err := loadMacros(container, filepath.Dir(path), loading)
	if err != nil {
		return nil, err
	}
	setChildren(container, macroEls)
	return macroPaths, nil
}

// loadMacros gathers the macro definitions reachable from one container:
// imported files first, then the container's own, normalized in place.
// loading holds the cleaned paths of files on the active import chain, for
// cycle detection.
func loadMacros(container *etree.Element, baseDir string, loading map[string]bool) ([]*etree.Element, []string, error) {
	macroEls, macroPaths, err := loadImportedMacros(container, baseDir, loading)
	if err != nil {
		return nil, nil, err
	}
	macroEls = append(macroEls, normalizeEmbedded(container)...)
	return macroEls, macroPaths, nil
}

func loadImportedMacros(container *etree.Element, baseDir string, loading map[string]bool) ([]*etree.Element, []string, error) {
	var macroEls []*etree.Element
	var macroPaths []string

	for _, relative := range importedMacroPathsFromEl(container) {
		importPath := filepath.Join(baseDir, relative)
		if loading[importPath] {
			return nil, nil, fmt.Errorf("%w: %s", ErrCyclicImport, importPath)
		}
		macroPaths = append(macroPaths, importPath)

		loading[importPath] = true
		fileEls, filePaths, err := loadMacroFile(importPath, loading)
		delete(loading, importPath)
		if err != nil {
			return nil, nil, err
		}
		macroEls = append(macroEls, fileEls...)
		macroPaths = append(macroPaths, filePaths...)
	}
	return macroEls, macroPaths, nil
}

// loadMacroFile parses one imported macro file, whose root element is
// itself the macro container, and extracts its full macro set. Nested
// imports resolve against the imported file's own directory.
func loadMacroFile(path string, loading map[string]bool) ([]*etree.Element, []string, error) {
	doc, err := RawTree(path)
	if err != nil {
		return nil, nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, nil, fmt.Errorf("parse %s: document has no root element", path)
	}
	return loadMacros(root, filepath.Dir(path), loading)
}
