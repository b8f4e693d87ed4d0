package compose

// Document is the normalized, variable-substitution-free configuration
// produced by the manifest interpreter (`docker compose config`). Only the
// sections the backup engine reads are modeled; everything else in the
// rendered document is ignored.
type Document struct {
	Name     string             `json:"name"`
	Services map[string]Service `json:"services"`
	Volumes  map[string]Volume  `json:"volumes"`
}

// Service is a single service spec from the rendered document.
type Service struct {
	Image       string            `json:"image,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	Volumes     []Mount           `json:"volumes,omitempty"`
}

// Mount is a normalized (long syntax) mount descriptor.
type Mount struct {
	Type   string `json:"type"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

// Volume is a named volume spec. Name is the resolved volume name,
// including any project prefix applied by the interpreter.
type Volume struct {
	Name string `json:"name"`
}

// RunningImage identifies an image backing a materialized container,
// as reported by `docker compose images`.
type RunningImage struct {
	ID            string `json:"ID"`
	ContainerName string `json:"ContainerName"`
	Repository    string `json:"Repository"`
	Tag           string `json:"Tag"`
	Size          int64  `json:"Size"`
}

// Reference returns the repository:tag reference for the image.
func (r RunningImage) Reference() string {
	return r.Repository + ":" + r.Tag
}
