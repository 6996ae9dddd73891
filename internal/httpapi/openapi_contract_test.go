package httpapi

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type openAPISchema struct {
	Properties map[string]openAPISchema `yaml:"properties"`
	Enum       []string                 `yaml:"enum"`
}

type openAPIDoc struct {
	Paths      map[string]map[string]any `yaml:"paths"`
	Components struct {
		Schemas map[string]openAPISchema `yaml:"schemas"`
	} `yaml:"components"`
}

var openAPIMethods = map[string]struct{}{
	http.MethodGet: {}, http.MethodPost: {}, http.MethodPut: {}, http.MethodPatch: {}, http.MethodDelete: {},
}

func moduleRoot(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(thisFile), "..", ".."))
}

func loadOpenAPI(t *testing.T) openAPIDoc {
	t.Helper()
	path := filepath.Join(moduleRoot(t), "api", "openapi.yaml")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %q: %v", path, err)
	}
	var doc openAPIDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		t.Fatalf("parse %q: %v", path, err)
	}
	return doc
}

// documentedOperations maps "METHOD /api/v1/..." to the operationId. Paths
// in the document are relative to servers.url=/api.
func documentedOperations(doc openAPIDoc) map[string]string {
	out := make(map[string]string)
	for p, ops := range doc.Paths {
		for m, op := range ops {
			method := strings.ToUpper(m)
			if _, ok := openAPIMethods[method]; !ok {
				continue
			}
			var id string
			if fields, ok := op.(map[string]any); ok {
				id, _ = fields["operationId"].(string)
			}
			out[method+" "+trimSlash("/api"+p)] = id
		}
	}
	return out
}

func routedOperations(t *testing.T) map[string]struct{} {
	t.Helper()

	raw := NewHandler(zerolog.New(io.Discard), Deps{}).Router()
	mux, ok := raw.(*chi.Mux)
	if !ok {
		t.Fatalf("expected *chi.Mux from Handler.Router(), got %T", raw)
	}

	out := make(map[string]struct{})
	err := chi.Walk(mux, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if _, ok := openAPIMethods[method]; !ok {
			return nil
		}
		route = trimSlash(route)
		if strings.HasPrefix(route, "/api/") {
			out[method+" "+route] = struct{}{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk chi router: %v", err)
	}
	return out
}

func trimSlash(route string) string {
	if len(route) > 1 {
		return strings.TrimSuffix(route, "/")
	}
	return route
}

func TestOpenAPIDoesNotDriftFromRouter(t *testing.T) {
	documented := documentedOperations(loadOpenAPI(t))
	routed := routedOperations(t)

	var missing, extra []string
	for k := range documented {
		if _, ok := routed[k]; !ok {
			missing = append(missing, k)
		}
	}
	for k := range routed {
		if _, ok := documented[k]; !ok {
			extra = append(extra, k)
		}
	}
	sort.Strings(missing)
	sort.Strings(extra)

	if len(missing) > 0 || len(extra) > 0 {
		t.Fatalf("OpenAPI drift detected. Update api/openapi.yaml or the router.\nnot routed: %v\nnot documented: %v", missing, extra)
	}
}

func TestOpenAPIDocumentsOccupancyOperations(t *testing.T) {
	documented := documentedOperations(loadOpenAPI(t))

	want := map[string]string{
		"GET /api/v1/floors":                "listFloors",
		"GET /api/v1/floors/{id}/overlay":   "getFloorOverlay",
		"GET /api/v1/floors/{id}/occupancy": "getFloorOccupancy",
		"GET /api/v1/rotation":              "getRotation",
		"PUT /api/v1/rotation":              "setRotation",
		"POST /api/v1/refresh":              "refresh",
		"GET /api/v1/status":                "getStatus",
	}
	for route, id := range want {
		got, ok := documented[route]
		if !ok {
			t.Errorf("%s is not documented", route)
			continue
		}
		if got != id {
			t.Errorf("%s: expected operationId %q, got %q", route, id, got)
		}
	}
}

var writeErrorCode = regexp.MustCompile(`writeError\(w, http\.Status\w+, "([a-z_]+)"`)

func TestOpenAPIListsEveryErrorCode(t *testing.T) {
	doc := loadOpenAPI(t)
	enum := doc.Components.Schemas["Error"].Properties["error"].Properties["code"].Enum
	if len(enum) == 0 {
		t.Fatal("Error.error.code has no enum")
	}
	documented := make(map[string]struct{}, len(enum))
	for _, c := range enum {
		documented[c] = struct{}{}
	}

	src, err := os.ReadFile(filepath.Join(moduleRoot(t), "internal", "httpapi", "handler.go"))
	if err != nil {
		t.Fatalf("read handler.go: %v", err)
	}
	matches := writeErrorCode.FindAllStringSubmatch(string(src), -1)
	if len(matches) == 0 {
		t.Fatal("found no writeError calls in handler.go")
	}
	for _, m := range matches {
		if _, ok := documented[m[1]]; !ok {
			t.Errorf("error code %q is written by the handler but missing from the OpenAPI enum", m[1])
		}
	}
}
