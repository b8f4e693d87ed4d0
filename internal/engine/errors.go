package engine

import (
	"errors"
	"fmt"
)

// ErrPassphraseRequired is returned before any capture work begins when no
// passphrase is configured and unencrypted backups are not explicitly
// permitted.
var ErrPassphraseRequired = errors.New("passphrase required: unencrypted backups must be explicitly allowed")

// ExternalToolError reports a capture, compress, or encrypt subprocess that
// exited non-zero. It carries which step failed and which resource was being
// processed; any such failure aborts the remaining pipeline.
type ExternalToolError struct {
	Step     string // "export-image", "snapshot-volume", "encrypt", ...
	Resource string
	Err      error
}

func (e *ExternalToolError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Step, e.Resource, e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }
