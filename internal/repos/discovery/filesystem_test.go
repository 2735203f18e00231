package discovery_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/repowatch/internal/repos/discovery"
)

const (
	developerDirectoryName             = "Dev"
	engineeringGroupDirectoryName      = "Group1"
	applicationRepositoryDirectoryName = "Repo1"
	serviceRepositoryDirectoryName     = "Repo2"
	toolsRepositoryDirectoryName       = "Repo3"
	gitMetadataDirectoryName           = ".git"
	singleRootSubtestTitle             = "discoversRepositoriesFromSingleRoot"
	combinedRootsSubtestTitle          = "discoversRepositoriesFromParentAndNestedRoots"
	repositoryDirectoryPermissions     = 0o755
	repositoryFilePermissions          = 0o644
)

type repositoryDefinition struct {
	directorySegments []string
}

func (definition repositoryDefinition) repositoryPath(rootDirectory string) string {
	segments := append([]string{rootDirectory}, definition.directorySegments...)
	return filepath.Join(segments...)
}

func createRepositories(testInstance *testing.T, rootDirectory string, definitions []repositoryDefinition) []string {
	testInstance.Helper()
	repositoryPaths := make([]string, 0, len(definitions))
	for _, definition := range definitions {
		repositoryPath := definition.repositoryPath(rootDirectory)
		require.NoError(testInstance, os.MkdirAll(filepath.Join(repositoryPath, gitMetadataDirectoryName), repositoryDirectoryPermissions))
		repositoryPaths = append(repositoryPaths, repositoryPath)
	}
	return repositoryPaths
}

func TestFilesystemRepositoryDiscovererDiscoversNestedLayouts(testInstance *testing.T) {
	repositoryDefinitions := []repositoryDefinition{
		{directorySegments: []string{developerDirectoryName, engineeringGroupDirectoryName, applicationRepositoryDirectoryName}},
		{directorySegments: []string{developerDirectoryName, engineeringGroupDirectoryName, serviceRepositoryDirectoryName}},
		{directorySegments: []string{developerDirectoryName, toolsRepositoryDirectoryName}},
	}

	testCases := []struct {
		title                      string
		rootDirectoriesConstructor func(string) []string
	}{
		{
			title: singleRootSubtestTitle,
			rootDirectoriesConstructor: func(rootDirectory string) []string {
				return []string{rootDirectory}
			},
		},
		{
			title: combinedRootsSubtestTitle,
			rootDirectoriesConstructor: func(rootDirectory string) []string {
				developerDirectoryPath := filepath.Join(rootDirectory, developerDirectoryName)
				engineeringGroupDirectoryPath := filepath.Join(developerDirectoryPath, engineeringGroupDirectoryName)
				return []string{rootDirectory, developerDirectoryPath, engineeringGroupDirectoryPath}
			},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.title, func(testInstance *testing.T) {
			rootDirectory := testInstance.TempDir()
			expectedRepositories := createRepositories(testInstance, rootDirectory, repositoryDefinitions)

			discoverer := discovery.NewFilesystemRepositoryDiscoverer(zap.NewNop(), nil)
			discoveredRepositories := discoverer.DiscoverRepositories(testCase.rootDirectoriesConstructor(rootDirectory), nil)

			require.ElementsMatch(testInstance, expectedRepositories, discoveredRepositories)
			require.IsIncreasing(testInstance, discoveredRepositories)
		})
	}
}

func TestDiscoverStopsAtMaximumDepth(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	deepestReachable := repositoryDefinition{directorySegments: []string{"a", "b", "c", "d", "e"}}
	tooDeep := repositoryDefinition{directorySegments: []string{"z", "y", "x", "w", "v", "u"}}
	createRepositories(testInstance, rootDirectory, []repositoryDefinition{deepestReachable, tooDeep})

	discoverer := discovery.NewFilesystemRepositoryDiscoverer(zap.NewNop(), nil)
	discoveredRepositories := discoverer.Discover(discovery.NewIgnoreSet(nil, nil), rootDirectory, 0)

	require.Equal(testInstance, []string{deepestReachable.repositoryPath(rootDirectory)}, discoveredRepositories)
}

func TestDiscoverHonorsIgnoreSet(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	keptRepository := repositoryDefinition{directorySegments: []string{"projects", "kept"}}
	ignoredRepository := repositoryDefinition{directorySegments: []string{"archive", "old", "project"}}
	vendoredRepository := repositoryDefinition{directorySegments: []string{"projects", "web", "node_modules", "left-pad"}}
	createRepositories(testInstance, rootDirectory, []repositoryDefinition{keptRepository, ignoredRepository, vendoredRepository})

	testCases := []struct {
		name                 string
		ignoredPaths         []string
		ignorePatterns       []string
		expectedRepositories []string
	}{
		{
			name:         "ignored_path_prunes_subtree",
			ignoredPaths: []string{filepath.Join(rootDirectory, "archive")},
			expectedRepositories: []string{
				keptRepository.repositoryPath(rootDirectory),
				vendoredRepository.repositoryPath(rootDirectory),
			},
		},
		{
			name:           "pattern_prunes_matching_directories",
			ignorePatterns: []string{"node_modules"},
			expectedRepositories: []string{
				ignoredRepository.repositoryPath(rootDirectory),
				keptRepository.repositoryPath(rootDirectory),
			},
		},
		{
			name:                 "ignored_root_yields_nothing",
			ignoredPaths:         []string{rootDirectory},
			expectedRepositories: nil,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			discoverer := discovery.NewFilesystemRepositoryDiscoverer(zap.NewNop(), testCase.ignorePatterns)
			discoveredRepositories := discoverer.DiscoverRepositories([]string{rootDirectory}, testCase.ignoredPaths)
			require.Equal(testInstance, testCase.expectedRepositories, discoveredRepositories)
		})
	}
}

func TestDiscoverSkipsRootsBeneathIgnoredPaths(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	nestedRepository := repositoryDefinition{directorySegments: []string{"vendor", "sub", "repo"}}
	createRepositories(testInstance, rootDirectory, []repositoryDefinition{nestedRepository})
	ignoredDirectory := filepath.Join(rootDirectory, "vendor")

	discoverer := discovery.NewFilesystemRepositoryDiscoverer(zap.NewNop(), nil)
	discoveredRepositories := discoverer.DiscoverRepositories([]string{filepath.Join(ignoredDirectory, "sub")}, []string{ignoredDirectory})
	require.Empty(testInstance, discoveredRepositories)

	ignoreSet := discovery.NewIgnoreSet([]string{ignoredDirectory}, nil)
	require.True(testInstance, ignoreSet.Contains(ignoredDirectory))
	require.True(testInstance, ignoreSet.Contains(nestedRepository.repositoryPath(rootDirectory)))
	require.False(testInstance, ignoreSet.Contains(rootDirectory))
	require.False(testInstance, ignoreSet.Contains(ignoredDirectory+"-tools"))
}

func TestDiscoverTreatsRepositoriesAsLeaves(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	outerRepository := repositoryDefinition{directorySegments: []string{"outer"}}
	innerRepository := repositoryDefinition{directorySegments: []string{"outer", "vendor", "inner"}}
	createRepositories(testInstance, rootDirectory, []repositoryDefinition{outerRepository, innerRepository})

	discoverer := discovery.NewFilesystemRepositoryDiscoverer(zap.NewNop(), nil)
	discoveredRepositories := discoverer.DiscoverRepositories([]string{rootDirectory}, nil)

	require.Equal(testInstance, []string{outerRepository.repositoryPath(rootDirectory)}, discoveredRepositories)
}

func TestDiscoverAcceptsGitFileMarkers(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	worktreePath := filepath.Join(rootDirectory, "worktree")
	require.NoError(testInstance, os.MkdirAll(worktreePath, repositoryDirectoryPermissions))
	require.NoError(testInstance, os.WriteFile(filepath.Join(worktreePath, gitMetadataDirectoryName), []byte("gitdir: /elsewhere/.git/worktrees/worktree\n"), repositoryFilePermissions))

	require.True(testInstance, discovery.HasGitMarker(worktreePath))

	discoverer := discovery.NewFilesystemRepositoryDiscoverer(zap.NewNop(), nil)
	require.Equal(testInstance, []string{worktreePath}, discoverer.DiscoverRepositories([]string{rootDirectory}, nil))
}

func TestDiscoverIsIdempotent(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	createRepositories(testInstance, rootDirectory, []repositoryDefinition{
		{directorySegments: []string{"one"}},
		{directorySegments: []string{"two", "three"}},
	})

	discoverer := discovery.NewFilesystemRepositoryDiscoverer(zap.NewNop(), nil)
	firstRun := discoverer.DiscoverRepositories([]string{rootDirectory, rootDirectory}, nil)
	secondRun := discoverer.DiscoverRepositories([]string{rootDirectory}, nil)

	require.Len(testInstance, firstRun, 2)
	require.Equal(testInstance, firstRun, secondRun)
}

func TestDiscoverDoesNotFollowDirectorySymlinks(testInstance *testing.T) {
	rootDirectory := testInstance.TempDir()
	externalDirectory := testInstance.TempDir()
	createRepositories(testInstance, externalDirectory, []repositoryDefinition{{directorySegments: []string{"external"}}})
	require.NoError(testInstance, os.Symlink(externalDirectory, filepath.Join(rootDirectory, "link")))

	discoverer := discovery.NewFilesystemRepositoryDiscoverer(zap.NewNop(), nil)
	require.Empty(testInstance, discoverer.DiscoverRepositories([]string{rootDirectory}, nil))
}

func TestDiscoverSkipsUnreadableDirectories(testInstance *testing.T) {
	if os.Geteuid() == 0 {
		testInstance.Skip("directory permissions are not enforced for root")
	}

	rootDirectory := testInstance.TempDir()
	readableRepository := repositoryDefinition{directorySegments: []string{"readable"}}
	createRepositories(testInstance, rootDirectory, []repositoryDefinition{readableRepository})
	lockedDirectory := filepath.Join(rootDirectory, "locked")
	require.NoError(testInstance, os.MkdirAll(lockedDirectory, repositoryDirectoryPermissions))
	require.NoError(testInstance, os.Chmod(lockedDirectory, 0))
	testInstance.Cleanup(func() {
		_ = os.Chmod(lockedDirectory, repositoryDirectoryPermissions)
	})

	observerCore, observerLogs := observer.New(zap.DebugLevel)
	discoverer := discovery.NewFilesystemRepositoryDiscoverer(zap.New(observerCore), nil)

	discoveredRepositories := discoverer.DiscoverRepositories([]string{rootDirectory}, nil)

	require.Equal(testInstance, []string{readableRepository.repositoryPath(rootDirectory)}, discoveredRepositories)
	require.Equal(testInstance, 1, observerLogs.FilterMessage("skipping unreadable directory").Len())
}
