package compose

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
)

// ErrManifestEmpty indicates a project resolved to zero manifest files,
// which is treated as invalid project state.
var ErrManifestEmpty = errors.New("project has no manifest files")

// Project is an immutable descriptor of a resolved compose project: its
// rendered document, the manifest files it came from, and the explicitly
// supplied env files. Derived sets are computed at most once per instance
// since the rendered document can be large and several consumers read the
// same set.
type Project struct {
	doc           *Document
	manifestFiles []string // absolute, discovery order
	envFiles      []string // as supplied on the command line
	workDir       string
	running       []RunningImage

	environmentsOnce sync.Once
	environments     map[string]map[string]string

	volumesOnce sync.Once
	volumes     []string

	bindsOnce sync.Once
	binds     []string

	imagesOnce sync.Once
	images     []string

	conflictOnce sync.Once
	conflict     bool
}

// NewProject builds a descriptor from a rendered document and the manifest
// files it was rendered from. manifestFiles must be non-empty; the directory
// of the first manifest becomes the containment boundary for bind mounts and
// discovered env files. running carries the images backing materialized
// containers when all-images mode is requested, nil otherwise.
func NewProject(doc *Document, manifestFiles, envFiles []string, running []RunningImage) (*Project, error) {
	if len(manifestFiles) == 0 {
		return nil, ErrManifestEmpty
	}

	abs := make([]string, len(manifestFiles))
	for i, f := range manifestFiles {
		a, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("resolve manifest path %q: %w", f, err)
		}
		abs[i] = a
	}

	return &Project{
		doc:           doc,
		manifestFiles: abs,
		envFiles:      append([]string(nil), envFiles...),
		workDir:       filepath.Dir(abs[0]),
		running:       running,
	}, nil
}

// Name returns the normalized project name from the rendered document.
func (p *Project) Name() string { return p.doc.Name }

// ManifestFiles returns the absolute manifest file paths in discovery order.
// Order matters: restore-script flag ordering follows it.
func (p *Project) ManifestFiles() []string {
	return append([]string(nil), p.manifestFiles...)
}

// EnvFiles returns the explicitly supplied env file paths, original order.
func (p *Project) EnvFiles() []string {
	return append([]string(nil), p.envFiles...)
}

// WorkDir is the directory containing the first manifest file. It defines
// the containment boundary for bind mounts and discovered env files.
func (p *Project) WorkDir() string { return p.workDir }

// Environments returns the environment map of every service.
func (p *Project) Environments() map[string]map[string]string {
	p.environmentsOnce.Do(func() {
		p.environments = make(map[string]map[string]string, len(p.doc.Services))
		for name, svc := range p.doc.Services {
			env := make(map[string]string, len(svc.Environment))
			for k, v := range svc.Environment {
				env[k] = v
			}
			p.environments[name] = env
		}
	})
	return p.environments
}

// Volumes returns the resolved names of every declared volume, sorted.
func (p *Project) Volumes() []string {
	p.volumesOnce.Do(func() {
		seen := make(map[string]struct{})
		for _, vol := range p.doc.Volumes {
			if vol.Name == "" {
				continue
			}
			seen[vol.Name] = struct{}{}
		}
		p.volumes = sortedKeys(seen)
	})
	return p.volumes
}

// Binds returns the absolute source paths of every bind mount, sorted.
// Only mounts of type "bind" count; named volume mounts are excluded.
func (p *Project) Binds() []string {
	p.bindsOnce.Do(func() {
		seen := make(map[string]struct{})
		for _, svc := range p.doc.Services {
			for _, m := range svc.Volumes {
				if m.Type != "bind" || m.Source == "" {
					continue
				}
				src, err := filepath.Abs(m.Source)
				if err != nil {
					continue
				}
				seen[src] = struct{}{}
			}
		}
		p.binds = sortedKeys(seen)
	})
	return p.binds
}

// Images returns every image reference used by the project, sorted. It is
// the union of per-service image fields and, when all-images mode supplied
// running containers, the repository:tag pairs actually backing them.
// References are kept as strings; the same image content can appear twice
// under different references.
func (p *Project) Images() []string {
	p.imagesOnce.Do(func() {
		seen := make(map[string]struct{})
		for _, svc := range p.doc.Services {
			if svc.Image != "" {
				seen[svc.Image] = struct{}{}
			}
		}
		for _, r := range p.running {
			seen[r.Reference()] = struct{}{}
		}
		p.images = sortedKeys(seen)
	})
	return p.images
}

// HasConflictedFiles reports whether two manifest files share a base name,
// in which case staged manifests get index-prefixed destination names.
func (p *Project) HasConflictedFiles() bool {
	p.conflictOnce.Do(func() {
		seen := make(map[string]struct{}, len(p.manifestFiles))
		for _, f := range p.manifestFiles {
			base := filepath.Base(f)
			if _, dup := seen[base]; dup {
				p.conflict = true
				return
			}
			seen[base] = struct{}{}
		}
	})
	return p.conflict
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
