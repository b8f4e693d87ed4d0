package compose

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// fakeRunner returns canned output per subcommand and records every
// invocation for argument assertions.
type fakeRunner struct {
	calls   [][]string
	outputs map[string][]byte // keyed by the compose verb ("ls", "config", "images")
	fail    map[string]error
}

func (f *fakeRunner) run(_ context.Context, _ string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	verb := ""
	for _, a := range args {
		switch a {
		case "ls", "config", "images":
			verb = a
		}
	}
	if err := f.fail[verb]; err != nil {
		return nil, err
	}
	out, ok := f.outputs[verb]
	if !ok {
		return nil, fmt.Errorf("unexpected verb %q in args %v", verb, args)
	}
	return out, nil
}

func newTestCLI(f *fakeRunner) *CLI {
	c := NewCLI(nil)
	c.run = f.run
	return c
}

func TestInspectResolvesProject(t *testing.T) {
	f := &fakeRunner{
		outputs: map[string][]byte{
			"ls": []byte(`[{"Name":"shop","Status":"running(2)","ConfigFiles":"/srv/shop/docker-compose.yml,/srv/shop/docker-compose.override.yml"}]`),
			"config": []byte(`{
				"name": "shop",
				"services": {"web": {"image": "nginx:1.25"}},
				"volumes": {"data": {"name": "shop_data"}}
			}`),
		},
	}

	p, err := newTestCLI(f).Inspect(context.Background(), "shop", InspectOptions{})
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}

	if p.Name() != "shop" {
		t.Errorf("Name() = %q", p.Name())
	}
	want := []string{"/srv/shop/docker-compose.yml", "/srv/shop/docker-compose.override.yml"}
	if got := p.ManifestFiles(); !reflect.DeepEqual(got, want) {
		t.Errorf("ManifestFiles() = %v, want %v", got, want)
	}
	if got, want := p.Volumes(), []string{"shop_data"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Volumes() = %v, want %v", got, want)
	}

	// The config call must carry both manifests, in order.
	var configArgs []string
	for _, call := range f.calls {
		if strings.Contains(strings.Join(call, " "), " config ") {
			configArgs = call
		}
	}
	joined := strings.Join(configArgs, " ")
	if !strings.Contains(joined, "-f /srv/shop/docker-compose.yml -f /srv/shop/docker-compose.override.yml") {
		t.Errorf("config invocation missing ordered -f flags: %v", configArgs)
	}
	if !strings.Contains(joined, "--no-interpolate") {
		t.Errorf("config invocation missing --no-interpolate: %v", configArgs)
	}
}

func TestInspectExactNameMatch(t *testing.T) {
	// The ls filter is a regex; a substring match must not count.
	f := &fakeRunner{
		outputs: map[string][]byte{
			"ls": []byte(`[{"Name":"shop-staging","Status":"running(1)","ConfigFiles":"/srv/x/docker-compose.yml"}]`),
		},
	}

	_, err := newTestCLI(f).Inspect(context.Background(), "shop", InspectOptions{})
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestInspectProjectNotFound(t *testing.T) {
	f := &fakeRunner{outputs: map[string][]byte{"ls": []byte(`[]`)}}

	_, err := newTestCLI(f).Inspect(context.Background(), "ghost", InspectOptions{})
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestInspectAllImages(t *testing.T) {
	f := &fakeRunner{
		outputs: map[string][]byte{
			"ls":     []byte(`[{"Name":"shop","Status":"running(1)","ConfigFiles":"/srv/shop/docker-compose.yml"}]`),
			"config": []byte(`{"name":"shop","services":{"app":{}}}`),
			"images": []byte(`[{"ID":"sha256:ba5dc23f","ContainerName":"shop-app-1","Repository":"busybox","Tag":"latest","Size":4261550}]`),
		},
	}

	p, err := newTestCLI(f).Inspect(context.Background(), "shop", InspectOptions{AllImages: true})
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}

	// The service has no image field (build-only), yet the running
	// container's reference is captured.
	if got, want := p.Images(), []string{"busybox:latest"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Images() = %v, want %v", got, want)
	}
}

func TestInspectForwardsEnvFiles(t *testing.T) {
	f := &fakeRunner{
		outputs: map[string][]byte{
			"ls":     []byte(`[{"Name":"shop","Status":"running(1)","ConfigFiles":"/srv/shop/docker-compose.yml"}]`),
			"config": []byte(`{"name":"shop","services":{}}`),
		},
	}

	_, err := newTestCLI(f).Inspect(context.Background(), "shop", InspectOptions{
		EnvFiles: []string{"conf/extra.env"},
	})
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}

	found := false
	for _, call := range f.calls {
		if strings.Contains(strings.Join(call, " "), "--env-file conf/extra.env") {
			found = true
		}
	}
	if !found {
		t.Error("env file was not forwarded to the interpreter")
	}
}

func TestInspectRenderFailure(t *testing.T) {
	f := &fakeRunner{
		outputs: map[string][]byte{
			"ls": []byte(`[{"Name":"shop","Status":"running(1)","ConfigFiles":"/srv/shop/docker-compose.yml"}]`),
		},
		fail: map[string]error{"config": errors.New("exit status 15")},
	}

	_, err := newTestCLI(f).Inspect(context.Background(), "shop", InspectOptions{})
	if err == nil || !strings.Contains(err.Error(), "render config") {
		t.Fatalf("expected render config failure, got %v", err)
	}
}
