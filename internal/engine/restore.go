package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dockpack/dockpack/internal/fsutil"
)

// Default manifest names that compose discovers without explicit -f flags.
var defaultManifestNames = map[string]struct{}{
	"docker-compose.yml":  {},
	"docker-compose.yaml": {},
}

// RestoreSpec parameterizes the restore script template.
type RestoreSpec struct {
	ProjectName string
	SourceArgs  string
	HelperImage string
}

// RestoreArgs builds the manifest-selection argument string for the restore
// script. It is empty when a single staged manifest carries a default name
// (default discovery suffices); otherwise it is the shell-quoted -f flag
// for every staged manifest in order, followed by --env-file flags for every
// explicitly supplied original env file path.
func RestoreArgs(stagedManifests, envFiles []string) string {
	var parts []string

	single := len(stagedManifests) == 1
	if _, isDefault := defaultManifestNames[first(stagedManifests)]; !single || !isDefault {
		for _, name := range stagedManifests {
			parts = append(parts, "-f", shellQuote(name))
		}
	}
	for _, env := range envFiles {
		parts = append(parts, "--env-file", shellQuote(env))
	}
	return strings.Join(parts, " ")
}

func first(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// shellQuote wraps s in single quotes, escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// WriteRestoreScript renders the restore script into the project staging
// root and marks it executable.
func (t *Templates) WriteRestoreScript(projectRoot string, spec RestoreSpec) error {
	path := filepath.Join(projectRoot, "restore.sh")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create restore script: %w", err)
	}
	if err := t.restore.Execute(f, spec); err != nil {
		_ = f.Close()
		return fmt.Errorf("render restore script: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close restore script: %w", err)
	}
	return fsutil.MakeExecutable(path)
}
