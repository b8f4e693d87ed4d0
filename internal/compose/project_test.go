package compose

import (
	"path/filepath"
	"reflect"
	"testing"
)

func testDocument() *Document {
	return &Document{
		Name: "shop",
		Services: map[string]Service{
			"web": {
				Image:       "nginx:1.25",
				Environment: map[string]string{"PORT": "8080"},
				Volumes: []Mount{
					{Type: "bind", Source: "/srv/shop/html", Target: "/usr/share/nginx/html"},
					{Type: "volume", Source: "data", Target: "/var/lib/data"},
				},
			},
			"worker": {
				// Build-only service: no image field.
				Environment: map[string]string{"QUEUE": "jobs"},
				Volumes: []Mount{
					{Type: "bind", Source: "/srv/shop/html", Target: "/html"},
					{Type: "bind", Source: "/etc/passwd", Target: "/creds"},
				},
			},
			"db": {
				Image: "nginx:1.25", // duplicate reference on purpose
			},
		},
		Volumes: map[string]Volume{
			"data":  {Name: "shop_data"},
			"cache": {Name: "shop_cache"},
		},
	}
}

func TestProjectDerivedSets(t *testing.T) {
	p, err := NewProject(testDocument(), []string{"/srv/shop/docker-compose.yml"}, nil, nil)
	if err != nil {
		t.Fatalf("NewProject returned error: %v", err)
	}

	if p.Name() != "shop" {
		t.Errorf("Name() = %q, want shop", p.Name())
	}
	if p.WorkDir() != filepath.FromSlash("/srv/shop") {
		t.Errorf("WorkDir() = %q", p.WorkDir())
	}

	if got, want := p.Volumes(), []string{"shop_cache", "shop_data"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Volumes() = %v, want %v", got, want)
	}

	// Duplicate service images collapse to one reference.
	if got, want := p.Images(), []string{"nginx:1.25"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Images() = %v, want %v", got, want)
	}

	wantBinds := []string{"/etc/passwd", "/srv/shop/html"}
	if got := p.Binds(); !reflect.DeepEqual(got, wantBinds) {
		t.Errorf("Binds() = %v, want %v", got, wantBinds)
	}

	envs := p.Environments()
	if envs["web"]["PORT"] != "8080" || envs["worker"]["QUEUE"] != "jobs" {
		t.Errorf("Environments() = %v", envs)
	}

	if p.HasConflictedFiles() {
		t.Error("single manifest reported as conflicted")
	}
}

func TestProjectImagesIncludesRunning(t *testing.T) {
	running := []RunningImage{
		{Repository: "busybox", Tag: "latest"},
		{Repository: "nginx", Tag: "1.25"}, // same ref as declared, different path
	}
	p, err := NewProject(testDocument(), []string{"/srv/shop/docker-compose.yml"}, nil, running)
	if err != nil {
		t.Fatalf("NewProject returned error: %v", err)
	}

	want := []string{"busybox:latest", "nginx:1.25"}
	if got := p.Images(); !reflect.DeepEqual(got, want) {
		t.Errorf("Images() = %v, want %v", got, want)
	}
}

func TestProjectConflictedFiles(t *testing.T) {
	files := []string{
		"/srv/a/docker-compose.yml",
		"/srv/b/docker-compose.yml",
	}
	p, err := NewProject(testDocument(), files, nil, nil)
	if err != nil {
		t.Fatalf("NewProject returned error: %v", err)
	}
	if !p.HasConflictedFiles() {
		t.Error("duplicate base names not reported as conflicted")
	}

	distinct := []string{
		"/srv/a/docker-compose.yml",
		"/srv/a/docker-compose.override.yml",
	}
	p2, err := NewProject(testDocument(), distinct, nil, nil)
	if err != nil {
		t.Fatalf("NewProject returned error: %v", err)
	}
	if p2.HasConflictedFiles() {
		t.Error("distinct base names reported as conflicted")
	}
}

func TestProjectManifestOrderPreserved(t *testing.T) {
	files := []string{
		"/srv/shop/docker-compose.yml",
		"/srv/shop/docker-compose.override.yml",
	}
	p, err := NewProject(testDocument(), files, nil, nil)
	if err != nil {
		t.Fatalf("NewProject returned error: %v", err)
	}

	got := p.ManifestFiles()
	if len(got) != 2 || filepath.Base(got[0]) != "docker-compose.yml" || filepath.Base(got[1]) != "docker-compose.override.yml" {
		t.Errorf("ManifestFiles() = %v, order not preserved", got)
	}
}

func TestProjectDerivedSetsStable(t *testing.T) {
	p, err := NewProject(testDocument(), []string{"/srv/shop/docker-compose.yml"}, nil, nil)
	if err != nil {
		t.Fatalf("NewProject returned error: %v", err)
	}

	// Memoized sets must be identical across reads.
	if !reflect.DeepEqual(p.Images(), p.Images()) {
		t.Error("Images() not stable across calls")
	}
	if !reflect.DeepEqual(p.Binds(), p.Binds()) {
		t.Error("Binds() not stable across calls")
	}
	if !reflect.DeepEqual(p.Volumes(), p.Volumes()) {
		t.Error("Volumes() not stable across calls")
	}
}

func TestNewProjectRequiresManifests(t *testing.T) {
	if _, err := NewProject(testDocument(), nil, nil, nil); err != ErrManifestEmpty {
		t.Fatalf("expected ErrManifestEmpty, got %v", err)
	}
}
