package inventory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/temirov/repowatch/internal/repos/shared"
)

const (
	stateSchemaVersionConstant                 = 1
	stateDirectoryPermissionsConstant          = 0o755
	stateFilePermissionsConstant               = 0o644
	lockFileSuffixConstant                     = ".lock"
	temporaryFileSuffixConstant                = ".tmp"
	applicationDirectoryNameConstant           = "repowatch"
	stateFileNameConstant                      = "state.yaml"
	dataHomeEnvironmentVariableConstant        = "XDG_DATA_HOME"
	localShareDirectoryConstant                = ".local/share"
	watchedSectionKeyConstant                  = "watched"
	ignoredSectionKeyConstant                  = "ignored"
	repositoriesSectionKeyConstant             = "repositories"
	statePathMissingMessageConstant            = "state file path not configured"
	fileSystemMissingMessageConstant           = "filesystem not configured"
	discovererMissingMessageConstant           = "repository discoverer not configured"
	stateReadErrorTemplateConstant             = "unable to read state file %s: %w"
	stateDecodeErrorTemplateConstant           = "unable to decode state file %s: %w"
	stateEncodeErrorTemplateConstant           = "unable to encode state: %w"
	stateWriteErrorTemplateConstant            = "unable to write state file %s: %w"
	stateLockErrorTemplateConstant             = "unable to lock state file %s: %w"
	homeDirectoryErrorTemplateConstant         = "unable to resolve home directory: %w"
	sectionDecodeFailedMessageConstant         = "state section could not be decoded and was reset"
	recordDecodeFailedMessageConstant          = "state record could not be decoded and was dropped"
	watchedPathPrunedMessageConstant           = "removing watched directory that no longer exists"
	repositoryPrunedMessageConstant            = "removing repository that no longer exists"
	configuredRepositoryMissingMessageConstant = "configured repository does not exist"
	repositoryAddedMessageConstant             = "repository added"
	logFieldPathConstant                       = "path"
	logFieldSectionConstant                    = "section"
	logFieldRecordIndexConstant                = "index"
	logFieldStateFileConstant                  = "state_file"
)

// ErrStatePathNotConfigured indicates the store was constructed without a state file path.
var ErrStatePathNotConfigured = errors.New(statePathMissingMessageConstant)

// ErrFileSystemNotConfigured indicates the filesystem dependency was missing.
var ErrFileSystemNotConfigured = errors.New(fileSystemMissingMessageConstant)

// ErrDiscovererNotConfigured indicates the discoverer dependency was missing.
var ErrDiscovererNotConfigured = errors.New(discovererMissingMessageConstant)

// Dependencies enumerates external collaborators required by the store.
type Dependencies struct {
	FileSystem shared.FileSystem
	Discoverer shared.RepositoryDiscoverer
	Logger     *zap.Logger
}

// ScanInputs carries the configuration-supplied lists merged into a scan.
type ScanInputs struct {
	Watched      []string
	Ignored      []string
	Repositories []string
}

// Store persists State as YAML.
type Store struct {
	statePath  string
	fileSystem shared.FileSystem
	discoverer shared.RepositoryDiscoverer
	logger     *zap.Logger
	fileLock   *flock.Flock
}

type stateDocument struct {
	Version      int          `yaml:"version"`
	Watched      []string     `yaml:"watched"`
	Ignored      []string     `yaml:"ignored"`
	Repositories []Repository `yaml:"repositories"`
}

// DefaultStatePath returns the XDG data location of the state file.
func DefaultStatePath() (string, error) {
	dataHome := strings.TrimSpace(os.Getenv(dataHomeEnvironmentVariableConstant))
	if len(dataHome) == 0 {
		homeDirectory, homeError := os.UserHomeDir()
		if homeError != nil {
			return "", fmt.Errorf(homeDirectoryErrorTemplateConstant, homeError)
		}
		dataHome = filepath.Join(homeDirectory, localShareDirectoryConstant)
	}
	return filepath.Join(dataHome, applicationDirectoryNameConstant, stateFileNameConstant), nil
}

// NewStore constructs a Store for the state file at statePath.
func NewStore(statePath string, dependencies Dependencies) (*Store, error) {
	trimmedPath := strings.TrimSpace(statePath)
	if len(trimmedPath) == 0 {
		return nil, ErrStatePathNotConfigured
	}
	if dependencies.FileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if dependencies.Discoverer == nil {
		return nil, ErrDiscovererNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		statePath:  trimmedPath,
		fileSystem: dependencies.FileSystem,
		discoverer: dependencies.Discoverer,
		logger:     logger,
		fileLock:   flock.New(trimmedPath + lockFileSuffixConstant),
	}, nil
}

// Path returns the location of the state file.
func (store *Store) Path() string {
	return store.statePath
}

// Load reads the state file. A missing file yields an empty State.
// Records that cannot be decoded are dropped, and a section that is not a list is reset to empty.
func (store *Store) Load() (State, error) {
	contents, readError := store.readLocked()
	if errors.Is(readError, fs.ErrNotExist) {
		return State{}, nil
	}
	if readError != nil {
		return State{}, fmt.Errorf(stateReadErrorTemplateConstant, store.statePath, readError)
	}

	var document yaml.Node
	if decodeError := yaml.Unmarshal(contents, &document); decodeError != nil {
		return State{}, fmt.Errorf(stateDecodeErrorTemplateConstant, store.statePath, decodeError)
	}

	var state State
	root := documentRoot(&document)
	if root == nil {
		return state, nil
	}

	for index := 0; index+1 < len(root.Content); index += 2 {
		sectionKey := root.Content[index].Value
		sectionValue := root.Content[index+1]
		var sectionError error
		var recordErrors []recordError
		switch sectionKey {
		case watchedSectionKeyConstant:
			state.Watched, recordErrors, sectionError = decodeSequence[string](sectionValue)
		case ignoredSectionKeyConstant:
			state.Ignored, recordErrors, sectionError = decodeSequence[string](sectionValue)
		case repositoriesSectionKeyConstant:
			state.Repositories, recordErrors, sectionError = decodeSequence[Repository](sectionValue)
		}
		if sectionError != nil {
			store.logger.Warn(sectionDecodeFailedMessageConstant,
				zap.String(logFieldStateFileConstant, store.statePath),
				zap.String(logFieldSectionConstant, sectionKey),
				zap.Error(sectionError))
		}
		for _, failure := range recordErrors {
			store.logger.Warn(recordDecodeFailedMessageConstant,
				zap.String(logFieldStateFileConstant, store.statePath),
				zap.String(logFieldSectionConstant, sectionKey),
				zap.Int(logFieldRecordIndexConstant, failure.index),
				zap.Error(failure.cause))
		}
	}

	state.normalize()
	return state, nil
}

// Save writes state atomically while holding an exclusive lock.
func (store *Store) Save(state State) error {
	state.normalize()
	document := stateDocument{
		Version:      stateSchemaVersionConstant,
		Watched:      state.Watched,
		Ignored:      state.Ignored,
		Repositories: state.Repositories,
	}
	contents, encodeError := yaml.Marshal(document)
	if encodeError != nil {
		return fmt.Errorf(stateEncodeErrorTemplateConstant, encodeError)
	}

	if directoryError := store.fileSystem.MkdirAll(filepath.Dir(store.statePath), stateDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(stateWriteErrorTemplateConstant, store.statePath, directoryError)
	}
	if lockError := store.fileLock.Lock(); lockError != nil {
		return fmt.Errorf(stateLockErrorTemplateConstant, store.statePath, lockError)
	}
	defer func() {
		_ = store.fileLock.Unlock()
	}()

	temporaryPath := store.statePath + temporaryFileSuffixConstant
	if writeError := store.fileSystem.WriteFile(temporaryPath, contents, stateFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(stateWriteErrorTemplateConstant, store.statePath, writeError)
	}
	if renameError := store.fileSystem.Rename(temporaryPath, store.statePath); renameError != nil {
		_ = store.fileSystem.Remove(temporaryPath)
		return fmt.Errorf(stateWriteErrorTemplateConstant, store.statePath, renameError)
	}
	return nil
}

// Scan reconciles state with the filesystem and persists the result.
// Vanished entries are pruned before discovery so that a repository that moved is not reported twice.
func (store *Store) Scan(executionContext context.Context, state *State, inputs ScanInputs) error {
	store.pruneWatched(state)
	store.pruneRepositories(state)

	ignoredPaths := append(append([]string(nil), inputs.Ignored...), state.Ignored...)
	watchedPaths := append(append([]string(nil), inputs.Watched...), state.Watched...)

	if executionContext.Err() != nil {
		return executionContext.Err()
	}

	for _, repositoryPath := range store.discoverer.DiscoverRepositories(watchedPaths, ignoredPaths) {
		if state.AddRepository(repositoryPath) {
			store.logger.Info(repositoryAddedMessageConstant, zap.String(logFieldPathConstant, repositoryPath))
		}
	}

	for _, repositoryPath := range inputs.Repositories {
		if !store.isDirectory(repositoryPath) {
			store.logger.Warn(configuredRepositoryMissingMessageConstant, zap.String(logFieldPathConstant, repositoryPath))
		}
		state.AddRepository(repositoryPath)
	}

	state.normalize()
	return store.Save(*state)
}

// RecordDurations folds measured durations into state and persists it.
func (store *Store) RecordDurations(state *State, durations map[string]time.Duration) error {
	if state.RecordDurations(durations) == 0 {
		return nil
	}
	return store.Save(*state)
}

func (store *Store) pruneWatched(state *State) {
	kept := state.Watched[:0]
	for _, watchedPath := range state.Watched {
		if store.isDirectory(watchedPath) {
			kept = append(kept, watchedPath)
			continue
		}
		store.logger.Warn(watchedPathPrunedMessageConstant, zap.String(logFieldPathConstant, watchedPath))
	}
	state.Watched = kept
}

func (store *Store) pruneRepositories(state *State) {
	kept := state.Repositories[:0]
	for _, repository := range state.Repositories {
		if store.isDirectory(repository.Path) && store.exists(filepath.Join(repository.Path, shared.GitMetadataEntryNameConstant)) {
			kept = append(kept, repository)
			continue
		}
		store.logger.Warn(repositoryPrunedMessageConstant, zap.String(logFieldPathConstant, repository.Path))
	}
	state.Repositories = kept
}

// isDirectory treats any stat error as absence.
func (store *Store) isDirectory(path string) bool {
	fileInfo, statError := store.fileSystem.Stat(path)
	return statError == nil && fileInfo.IsDir()
}

func (store *Store) exists(path string) bool {
	_, statError := store.fileSystem.Stat(path)
	return statError == nil
}

func (store *Store) readLocked() ([]byte, error) {
	if _, statError := store.fileSystem.Stat(store.statePath); statError != nil {
		return nil, statError
	}
	if lockError := store.fileLock.RLock(); lockError != nil {
		return nil, lockError
	}
	defer func() {
		_ = store.fileLock.Unlock()
	}()
	return store.fileSystem.ReadFile(store.statePath)
}

type recordError struct {
	index int
	cause error
}

// decodeSequence decodes every entry of a sequence node on its own so one bad record does not discard its siblings.
func decodeSequence[T any](section *yaml.Node) ([]T, []recordError, error) {
	if section.Kind != yaml.SequenceNode {
		var values []T
		if decodeError := section.Decode(&values); decodeError != nil {
			return nil, nil, decodeError
		}
		return values, nil, nil
	}

	values := make([]T, 0, len(section.Content))
	var failures []recordError
	for index, entry := range section.Content {
		var value T
		if decodeError := entry.Decode(&value); decodeError != nil {
			failures = append(failures, recordError{index: index, cause: decodeError})
			continue
		}
		values = append(values, value)
	}
	return values, failures, nil
}

func documentRoot(document *yaml.Node) *yaml.Node {
	root := document
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return nil
		}
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil
	}
	return root
}

// NewDurationRecorder binds a state to the store for the orchestrator.
func NewDurationRecorder(store *Store, state *State) DurationRecorder {
	return DurationRecorder{store: store, state: state}
}

// DurationRecorder persists per-repository timings after a run.
type DurationRecorder struct {
	store *Store
	state *State
}

// RecordDurations folds durations into the bound state and saves it.
func (recorder DurationRecorder) RecordDurations(durations map[string]time.Duration) error {
	return recorder.store.RecordDurations(recorder.state, durations)
}
