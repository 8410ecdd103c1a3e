// Package environment inspects the project's virtual environment and refuses to run
// pipeline stages unless it is provisioned and active.
package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirectory is the environment directory created by the setup step.
	DefaultDirectory = ".venv"
	// DefaultIndicatorVariable is exported by the activation script.
	DefaultIndicatorVariable = "VIRTUAL_ENV"

	directoryResolveErrorTemplate = "unable to resolve environment directory %s: %w"
	directoryInspectErrorTemplate = "unable to inspect environment directory %s: %w"
)

// FileSystem exposes the filesystem operations needed to inspect the environment.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Abs(path string) (string, error)
	EvalSymlinks(path string) (string, error)
}

// LookupEnvironment resolves process environment variables.
type LookupEnvironment func(key string) (string, bool)

// InspectConfig names the directory and indicator variable to inspect.
type InspectConfig struct {
	Directory         string
	IndicatorVariable string
}

// State is a read-only snapshot of the environment taken once per invocation.
type State struct {
	DirectoryPath     string
	AbsolutePath      string
	ResolvedPath      string
	DirectoryExists   bool
	IndicatorVariable string
	ActiveIndicator   string
	IndicatorSet      bool
}

// Active reports whether the indicator names the resolved environment directory.
// The unresolved absolute path is accepted too, since activation scripts record the
// path as it was spelled at creation time.
func (state State) Active() bool {
	if !state.IndicatorSet {
		return false
	}
	indicator := strings.TrimSpace(state.ActiveIndicator)
	if len(indicator) == 0 {
		return false
	}
	indicator = filepath.Clean(indicator)
	if len(state.ResolvedPath) > 0 && indicator == filepath.Clean(state.ResolvedPath) {
		return true
	}
	return len(state.AbsolutePath) > 0 && indicator == filepath.Clean(state.AbsolutePath)
}

// OSFileSystem implements FileSystem on top of the os package.
type OSFileSystem struct{}

// Stat delegates to os.Stat.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Abs delegates to filepath.Abs.
func (OSFileSystem) Abs(path string) (string, error) {
	return filepath.Abs(path)
}

// EvalSymlinks delegates to filepath.EvalSymlinks.
func (OSFileSystem) EvalSymlinks(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}

// Inspect captures the environment state. Nil collaborators fall back to the os package.
func Inspect(config InspectConfig, fileSystem FileSystem, lookup LookupEnvironment) (State, error) {
	if fileSystem == nil {
		fileSystem = OSFileSystem{}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	directory := strings.TrimSpace(config.Directory)
	if len(directory) == 0 {
		directory = DefaultDirectory
	}
	indicatorVariable := strings.TrimSpace(config.IndicatorVariable)
	if len(indicatorVariable) == 0 {
		indicatorVariable = DefaultIndicatorVariable
	}

	resolvedPath, resolveError := fileSystem.Abs(directory)
	if resolveError != nil {
		return State{}, fmt.Errorf(directoryResolveErrorTemplate, directory, resolveError)
	}

	state := State{
		DirectoryPath:     directory,
		AbsolutePath:      resolvedPath,
		ResolvedPath:      resolvedPath,
		IndicatorVariable: indicatorVariable,
	}

	fileInfo, statError := fileSystem.Stat(directory)
	switch {
	case statError == nil:
		state.DirectoryExists = fileInfo.IsDir()
		if linkTarget, linkError := fileSystem.EvalSymlinks(resolvedPath); linkError == nil {
			state.ResolvedPath = linkTarget
		}
	case errors.Is(statError, fs.ErrNotExist):
		state.DirectoryExists = false
	default:
		return State{}, fmt.Errorf(directoryInspectErrorTemplate, directory, statError)
	}

	state.ActiveIndicator, state.IndicatorSet = lookup(indicatorVariable)
	return state, nil
}
