package rvc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	modelExtension = ".pth"
	indexExtension = ".index"
)

// ErrModelNotFound is returned when no checkpoint exists for a model name.
var ErrModelNotFound = errors.New("rvc model not found")

// Model is a resolved RVC checkpoint and its optional feature index.
type Model struct {
	Name      string
	ModelPath string
	IndexPath string
}

// ResolveModel finds the checkpoint for name inside modelsDir. Models live in
// their own directory, <modelsDir>/<name>/, holding one .pth file and optionally
// one .index file. A bare <modelsDir>/<name>.pth is accepted as well.
func ResolveModel(modelsDir, name string) (Model, error) {
	if name == "" {
		return Model{}, fmt.Errorf("%w: empty model name", ErrModelNotFound)
	}

	modelDir := filepath.Join(modelsDir, name)

	modelPath, err := firstMatch(modelDir, modelExtension)
	if err != nil {
		return Model{}, err
	}

	if modelPath == "" {
		flat := filepath.Join(modelsDir, name+modelExtension)

		_, statErr := os.Stat(flat)
		if statErr != nil {
			return Model{}, fmt.Errorf("%w: %s in %s", ErrModelNotFound, name, modelsDir)
		}

		return absoluteModel(name, flat, flatIndex(modelsDir, name))
	}

	indexPath, err := firstMatch(modelDir, indexExtension)
	if err != nil {
		return Model{}, err
	}

	return absoluteModel(name, modelPath, indexPath)
}

func flatIndex(modelsDir, name string) string {
	indexPath := filepath.Join(modelsDir, name+indexExtension)

	_, statErr := os.Stat(indexPath)
	if statErr != nil {
		return ""
	}

	return indexPath
}

func absoluteModel(name, modelPath, indexPath string) (Model, error) {
	absModel, err := filepath.Abs(modelPath)
	if err != nil {
		return Model{}, fmt.Errorf("could not resolve absolute path for %q: %w", modelPath, err)
	}

	return Model{Name: name, ModelPath: absModel, IndexPath: indexPath}, nil
}

// firstMatch returns the lexically first file in dir with ext, or "" when the
// directory is missing or holds none.
func firstMatch(dir, ext string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		return "", fmt.Errorf("failed to search %s for %s files: %w", dir, ext, err)
	}

	if len(matches) == 0 {
		return "", nil
	}

	sort.Strings(matches)

	return matches[0], nil
}
