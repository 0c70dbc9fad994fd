package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/hostprobe/hostprobe/internal/metadata"

	"gopkg.in/yaml.v3"
)

func sampleResult() *metadata.Result {
	res := metadata.New(metadata.QueryFile, "/etc/passwd")
	res.Success = true
	res.AddAttribute("type", "regular")
	res.AddAttribute("mode_octal", "0644")
	res.AddList("open_files", []string{"0:/dev/null", "1:/dev/pts/0", "2"})
	return res
}

func TestJSONRoundTripSingleValue(t *testing.T) {
	out, err := (&JSONFormatter{}).Format(sampleResult())
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}

	var decoded struct {
		Success    bool            `json:"success"`
		Type       string          `json:"type"`
		Identifier string          `json:"identifier"`
		Attributes map[string]any  `json:"attributes"`
		Error      json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}

	if !decoded.Success || decoded.Type != "file" || decoded.Identifier != "/etc/passwd" {
		t.Fatalf("header fields wrong: %+v", decoded)
	}
	if decoded.Error != nil {
		t.Fatal("successful result must not carry an error key")
	}
	if got := decoded.Attributes["mode_octal"]; got != "0644" {
		t.Fatalf("single-value attribute should round-trip to a string, got %#v", got)
	}
}

func TestJSONRoundTripMultiValue(t *testing.T) {
	out, err := (&JSONFormatter{Pretty: true}).Format(sampleResult())
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}

	var decoded struct {
		Attributes map[string]any `json:"attributes"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("pretty output is not valid JSON: %v\n%s", err, out)
	}

	list, ok := decoded.Attributes["open_files"].([]any)
	if !ok {
		t.Fatalf("multi-value attribute should round-trip to an array, got %#v", decoded.Attributes["open_files"])
	}
	want := []string{"0:/dev/null", "1:/dev/pts/0", "2"}
	if len(list) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(list))
	}
	for i, v := range want {
		if list[i] != v {
			t.Fatalf("value %d: expected %q, got %#v (order must be preserved)", i, v, list[i])
		}
	}
}

func TestJSONEmptyAttributeRendersNull(t *testing.T) {
	res := metadata.New(metadata.QueryProcess, "1")
	res.Success = true
	res.AddList("environment", nil)

	out, err := (&JSONFormatter{}).Format(res)
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if !strings.Contains(string(out), `"environment":null`) {
		t.Fatalf("zero-value attribute should render as null, got %s", out)
	}
}

func TestJSONErrorResult(t *testing.T) {
	res := metadata.NewErrorResult(metadata.QueryProcess, "99", "Process not found or access denied for PID: 99")

	out, err := (&JSONFormatter{}).Format(res)
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}

	var decoded struct {
		Success bool           `json:"success"`
		Error   string         `json:"error"`
		Attrs   map[string]any `json:"attributes"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if decoded.Success {
		t.Fatal("expected success=false")
	}
	if !strings.Contains(decoded.Error, "not found or access denied") {
		t.Fatalf("unexpected error text: %q", decoded.Error)
	}
	if len(decoded.Attrs) != 0 {
		t.Fatalf("error result should have no attributes, got %v", decoded.Attrs)
	}
}

func TestJSONEscapesSpecialCharacters(t *testing.T) {
	res := metadata.New(metadata.QueryFile, `/tmp/we"ird`+"\n")
	res.Success = true
	res.AddAttribute("symlink_target", "a\tb\\c")

	out, err := (&JSONFormatter{}).Format(res)
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}

	var decoded struct {
		Identifier string            `json:"identifier"`
		Attributes map[string]string `json:"attributes"`
	}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, out)
	}
	if decoded.Identifier != `/tmp/we"ird`+"\n" {
		t.Fatalf("identifier escaping broken: %q", decoded.Identifier)
	}
	if decoded.Attributes["symlink_target"] != "a\tb\\c" {
		t.Fatalf("value escaping broken: %q", decoded.Attributes["symlink_target"])
	}
}

func TestJSONDuplicateNamesRenderAsRepeatedKeys(t *testing.T) {
	res := metadata.New(metadata.QueryFile, "/tmp/x")
	res.Success = true
	res.AddAttribute("note", "first")
	res.AddAttribute("note", "second")

	out, err := (&JSONFormatter{}).Format(res)
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if strings.Count(string(out), `"note":`) != 2 {
		t.Fatalf("expected two note keys, got %s", out)
	}
}

func TestYAMLPreservesOrderAndShape(t *testing.T) {
	out, err := (&YAMLFormatter{}).Format(sampleResult())
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(out, &node); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, out)
	}

	text := string(out)
	typeIdx := strings.Index(text, "type: regular")
	modeIdx := strings.Index(text, "mode_octal:")
	filesIdx := strings.Index(text, "open_files:")
	if typeIdx == -1 || modeIdx == -1 || filesIdx == -1 {
		t.Fatalf("missing attributes in YAML output:\n%s", text)
	}
	if !(typeIdx < modeIdx && modeIdx < filesIdx) {
		t.Fatalf("attribute order not preserved:\n%s", text)
	}
	if !strings.Contains(text, "- 0:/dev/null") {
		t.Fatalf("multi-value attribute should render as a sequence:\n%s", text)
	}
}

func TestYAMLErrorKeyOnlyOnFailure(t *testing.T) {
	ok := sampleResult()
	out, err := (&YAMLFormatter{}).Format(ok)
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if strings.Contains(string(out), "error:") {
		t.Fatalf("successful result must not carry an error key:\n%s", out)
	}

	bad := metadata.NewErrorResult(metadata.QueryPort, "0", "Invalid port number: 0")
	out, err = (&YAMLFormatter{}).Format(bad)
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if !strings.Contains(string(out), "error: 'Invalid port number: 0'") && !strings.Contains(string(out), `error: "Invalid port number: 0"`) {
		t.Fatalf("expected quoted error value:\n%s", out)
	}
}
