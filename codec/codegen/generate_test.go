package codegen

import (
	"strings"
	"testing"
)

const sampleSchema = `{
	"copyright": "example",
	"version": "1",
	"namespace": "widgets",
	"base_id": 100,
	"declarations": [
		{
			"name": "widget_created",
			"members": [
				{"name": "id", "type": "i64"},
				{"name": "name", "type": "string"},
				{"name": "tags", "type": "string[]"}
			]
		},
		{
			"name": "widget-removed",
			"members": [
				{"name": "id", "type": "i64"}
			]
		}
	]
}`

func TestGenerateProducesExpectedTypesAndIDs(t *testing.T) {
	schema, err := ParseSchema([]byte(sampleSchema))
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}

	out, err := Generate(schema, "widgets")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if !strings.Contains(out, "package widgets") {
		t.Fatalf("missing package clause:\n%s", out)
	}
	if !strings.Contains(out, "type WidgetCreated struct") {
		t.Fatalf("missing WidgetCreated struct:\n%s", out)
	}
	if !strings.Contains(out, "Tags []string") {
		t.Fatalf("missing Tags field:\n%s", out)
	}
	if !strings.Contains(out, "func (v *WidgetCreated) TypeID() int32 { return 100 }") {
		t.Fatalf("expected base id 100 for first declaration:\n%s", out)
	}
	if !strings.Contains(out, "type WidgetRemoved struct") {
		t.Fatalf("missing WidgetRemoved struct (from kebab-case name):\n%s", out)
	}
	if !strings.Contains(out, "func (v *WidgetRemoved) TypeID() int32 { return 101 }") {
		t.Fatalf("expected consecutive id 101 for second declaration:\n%s", out)
	}
}

func TestGenerateRejectsUnknownMemberType(t *testing.T) {
	schema := &Schema{
		BaseID: 1,
		Declarations: []Declaration{
			{Name: "bad", Members: []Member{{Name: "x", Type: "uint128"}}},
		},
	}
	if _, err := Generate(schema, "pkg"); err == nil {
		t.Fatalf("expected error for unsupported member type")
	}
}
