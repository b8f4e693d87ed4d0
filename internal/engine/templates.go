package engine

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed templates/restore.sh.tmpl templates/header.sh.tmpl
var templateFS embed.FS

// Templates holds the rendered-script templates: the restore script placed
// inside the staging tree and the self-extracting header prefixed to the
// final archive. Both ship embedded; an override directory can replace
// either by file name.
type Templates struct {
	restore *template.Template
	header  *template.Template
}

// LoadTemplates parses the embedded templates, preferring files of the same
// name from overrideDir when it is non-empty.
func LoadTemplates(overrideDir string) (*Templates, error) {
	restore, err := loadTemplate(overrideDir, "restore.sh.tmpl")
	if err != nil {
		return nil, err
	}
	header, err := loadTemplate(overrideDir, "header.sh.tmpl")
	if err != nil {
		return nil, err
	}
	return &Templates{restore: restore, header: header}, nil
}

func loadTemplate(overrideDir, name string) (*template.Template, error) {
	if overrideDir != "" {
		path := filepath.Join(overrideDir, name)
		if _, err := os.Stat(path); err == nil {
			tmpl, err := template.ParseFiles(path)
			if err != nil {
				return nil, fmt.Errorf("parse template %s: %w", path, err)
			}
			return tmpl, nil
		}
	}

	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("read embedded template %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse embedded template %s: %w", name, err)
	}
	return tmpl, nil
}
