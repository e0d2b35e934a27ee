package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"image_load",
		"plate_detect",
		"plate_recognize",
		"plate_consolidate",
		"plate_sanitize",
		"plate_crop",
		"plate_annotate",
		"ocr_info",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(tools), len(expectedTools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}

			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties should be a map")
			}

			// Every required field must be a declared property.
			if required, ok := tool.InputSchema["required"].([]string); ok {
				for _, r := range required {
					if _, ok := props[r]; !ok {
						t.Errorf("required field %q not in properties", r)
					}
				}
			}
		})
	}
}

func TestToolDefinitions_ImageSource(t *testing.T) {
	for _, name := range []string{"plate_detect", "plate_recognize", "plate_crop", "plate_annotate"} {
		var tool *Tool
		for _, tl := range GetToolDefinitions() {
			if tl.Name == name {
				tl := tl
				tool = &tl
			}
		}
		if tool == nil {
			t.Fatalf("tool %s missing", name)
		}
		props := tool.InputSchema["properties"].(map[string]interface{})
		for _, k := range []string{"path", "image_base64"} {
			if _, ok := props[k]; !ok {
				t.Errorf("%s: missing %s property", name, k)
			}
		}
	}
}

func TestImageSourceProperties_NotShared(t *testing.T) {
	a := imageSourceProperties()
	a["extra"] = true
	if _, ok := imageSourceProperties()["extra"]; ok {
		t.Error("imageSourceProperties must return a fresh map")
	}
}
