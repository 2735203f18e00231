package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const homeShortcutConstant = "~"

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander replaces a leading ~ with the home directory. The directory is looked up once.
type HomeExpander struct {
	provider HomeDirectoryProvider
	lookup   sync.Once
	home     string
}

// NewHomeExpander constructs a HomeExpander using the operating system lookup.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(nil)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{provider: provider}
}

// Expand resolves "~" and "~/..." against the home directory. Other paths, including "~user", are returned unchanged.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || !strings.HasPrefix(candidatePath, homeShortcutConstant) {
		return candidatePath
	}

	remainder := strings.TrimPrefix(candidatePath, homeShortcutConstant)
	if len(remainder) > 0 && remainder[0] != '/' && remainder[0] != os.PathSeparator {
		return candidatePath
	}

	home := expander.homeDirectory()
	if len(home) == 0 {
		return candidatePath
	}
	return filepath.Join(home, remainder)
}

func (expander *HomeExpander) homeDirectory() string {
	expander.lookup.Do(func() {
		home, lookupError := expander.provider()
		if lookupError == nil {
			expander.home = home
		}
	})
	return expander.home
}
