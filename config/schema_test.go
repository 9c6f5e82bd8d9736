package config

import (
	"encoding/json"
	"testing"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatalf("GenerateSchema failed: %v", err)
	}

	var schema map[string]interface{}
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}

	if schema["$schema"] != "http://json-schema.org/draft-07/schema#" {
		t.Errorf("expected JSON Schema draft-07, got %v", schema["$schema"])
	}
	if schema["additionalProperties"] != true {
		t.Errorf("top level must accept extension keys, got %v", schema["additionalProperties"])
	}

	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("expected properties to be defined")
	}
	for _, key := range []string{"workspace", "server", "watcher"} {
		if _, ok := props[key]; !ok {
			t.Errorf("expected %s property", key)
		}
	}
	if _, ok := props["Extensions"]; ok {
		t.Error("Extensions must not appear in the schema")
	}

	watcher := props["watcher"].(map[string]interface{})
	if watcher["additionalProperties"] != false {
		t.Errorf("watcher section should be strict, got %v", watcher["additionalProperties"])
	}
	watcherProps := watcher["properties"].(map[string]interface{})
	if _, ok := watcherProps["debounce_ms"]; !ok {
		t.Error("expected yaml field names in the schema")
	}
}

func TestMergeMaps(t *testing.T) {
	base := map[string]interface{}{
		"workspace": map[string]interface{}{"root": "/a", "bootstrap": true},
		"logging":   map[string]interface{}{"level": "info"},
	}
	override := map[string]interface{}{
		"workspace": map[string]interface{}{"root": "/b"},
		"logging":   "disabled",
	}

	merged := mergeMaps(base, override)

	ws := merged["workspace"].(map[string]interface{})
	if ws["root"] != "/b" || ws["bootstrap"] != true {
		t.Errorf("nested maps should merge key by key, got %v", ws)
	}
	if merged["logging"] != "disabled" {
		t.Errorf("non-map override should replace, got %v", merged["logging"])
	}
	if base["workspace"].(map[string]interface{})["root"] != "/a" {
		t.Error("base must not be modified")
	}
}
