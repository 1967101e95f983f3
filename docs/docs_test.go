package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestRegisteredDocIsValidJSON(t *testing.T) {
	doc, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("ReadDoc: %v", err)
	}
	var parsed struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		t.Fatalf("swagger doc is not valid JSON: %v", err)
	}
	for _, path := range []string{"/api/v1/scans", "/api/v1/scans/{id}", "/healthz"} {
		if _, ok := parsed.Paths[path]; !ok {
			t.Errorf("path %s missing from swagger doc", path)
		}
	}
}
