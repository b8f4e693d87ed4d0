package engine

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dockpack/dockpack/internal/compose"
	"github.com/dockpack/dockpack/internal/safety"
)

// Kind discriminates resource plan items. Each variant carries exactly the
// fields its capture operation needs and is dispatched via an explicit
// switch during staging.
type Kind int

const (
	KindImage Kind = iota
	KindVolume
	KindManifest
	KindBind
	KindEnvFile
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVolume:
		return "volume"
	case KindManifest:
		return "manifest"
	case KindBind:
		return "bind"
	case KindEnvFile:
		return "env-file"
	default:
		return "unknown"
	}
}

// Item is one planned capture: a source reference (image name, volume name,
// or absolute path) and its destination relative to the project-named
// staging root.
type Item struct {
	Kind   Kind
	Source string
	Dest   string
	// Index disambiguates manifest files when base names collide; it is
	// meaningful for KindManifest only.
	Index int
}

// Skip records a resource deliberately excluded from the plan. Skips are
// warnings, never failures.
type Skip struct {
	Source string
	Reason string
}

// Plan is the ordered capture list for one project.
type Plan struct {
	Project string
	Items   []Item
	Skips   []Skip
}

// Manifests returns the manifest items in discovery order.
func (p *Plan) Manifests() []Item {
	var out []Item
	for _, it := range p.Items {
		if it.Kind == KindManifest {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// CollectOptions tunes plan construction.
type CollectOptions struct {
	// SkipImages omits image export items from the plan.
	SkipImages bool
}

// Collect walks a project descriptor and produces the concrete capture
// plan: images, volumes, manifest files, in-project bind mounts, and env
// files, each paired with its staging destination. It is a pure function of
// the descriptor (plus a read-only look at the working directory for env
// file discovery): running it twice yields an identical plan. Skippable
// conditions are recorded, never raised.
func Collect(proj *compose.Project, opts CollectOptions) (*Plan, error) {
	plan := &Plan{Project: proj.Name()}
	projectDir := path.Join("project", proj.Name())

	if !opts.SkipImages {
		for _, image := range proj.Images() {
			plan.Items = append(plan.Items, Item{
				Kind:   KindImage,
				Source: image,
				Dest:   path.Join("images", encodeImageRef(image)+".tar"),
			})
		}
	}

	for _, volume := range proj.Volumes() {
		plan.Items = append(plan.Items, Item{
			Kind:   KindVolume,
			Source: volume,
			Dest:   path.Join("volumes", volume+".tar"),
		})
	}

	conflicted := proj.HasConflictedFiles()
	for i, manifest := range proj.ManifestFiles() {
		name := filepath.Base(manifest)
		if conflicted {
			// Zero-based index prefix keeps names unique when two
			// manifests share a base name across directories.
			name = fmt.Sprintf("%d_%s", i, name)
		}
		plan.Items = append(plan.Items, Item{
			Kind:   KindManifest,
			Source: manifest,
			Dest:   path.Join(projectDir, name),
			Index:  i,
		})
	}

	workDir := proj.WorkDir()
	for _, bind := range proj.Binds() {
		rel, err := safety.RelativeTo(workDir, bind)
		if err != nil {
			// Mounts outside the project tree are host infrastructure,
			// not project state. Deliberate boundary, not an error.
			plan.Skips = append(plan.Skips, Skip{
				Source: bind,
				Reason: "out-of-project mount path",
			})
			continue
		}
		plan.Items = append(plan.Items, Item{
			Kind:   KindBind,
			Source: bind,
			Dest:   path.Join(projectDir, filepath.ToSlash(rel)),
		})
	}

	envFiles, err := collectEnvFiles(workDir, proj.EnvFiles())
	if err != nil {
		return nil, err
	}
	for _, env := range envFiles {
		rel, err := safety.RelativeTo(workDir, env)
		if err != nil {
			plan.Skips = append(plan.Skips, Skip{
				Source: env,
				Reason: "outside of the project directory",
			})
			continue
		}
		plan.Items = append(plan.Items, Item{
			Kind:   KindEnvFile,
			Source: env,
			Dest:   path.Join(projectDir, filepath.ToSlash(rel)),
		})
	}

	return plan, nil
}

// collectEnvFiles builds the deduplicated env file candidate set: explicit
// paths, the conventional .env (only when no explicit files were supplied),
// and every *.env file directly inside the working directory.
func collectEnvFiles(workDir string, explicit []string) ([]string, error) {
	seen := make(map[string]struct{})

	for _, f := range explicit {
		seen[resolvePath(f)] = struct{}{}
	}

	if len(explicit) == 0 {
		dotEnv := resolvePath(filepath.Join(workDir, ".env"))
		if isRegularFile(dotEnv) {
			seen[dotEnv] = struct{}{}
		}
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("read project directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		// A bare ".env" has no extension; it is only picked up by the
		// default-file rule above.
		if name == ".env" || !strings.HasSuffix(name, ".env") {
			continue
		}
		resolved := resolvePath(filepath.Join(workDir, name))
		if isRegularFile(resolved) {
			seen[resolved] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// resolvePath makes a path absolute and follows symlinks where possible.
// Unresolvable paths are kept absolute so later steps can report them.
func resolvePath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs
	}
	return resolved
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// encodeImageRef percent-encodes an image reference so it yields a valid
// flat file name regardless of '/' or ':' in the reference. QueryEscape
// maps a space to '+' rather than %20, but image references cannot contain
// spaces; every byte actually legal in a reference gets its %XX form.
func encodeImageRef(ref string) string {
	return url.QueryEscape(ref)
}
