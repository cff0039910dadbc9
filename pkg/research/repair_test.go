package research

import (
	"reflect"
	"testing"
)

func TestSanitizeJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain object untouched", `{"a": 1}`, `{"a": 1}`},
		{"Code fence stripped", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"Bare fence stripped", "```\n[1, 2]\n```", `[1, 2]`},
		{"Trailing comma in object", `{"a": 1,}`, `{"a": 1}`},
		{"Trailing comma in array", `[1, 2,]`, `[1, 2]`},
		{"Leading json tag", `json{"a": 1}`, `{"a": 1}`},
		{"Single quotes converted", `{'a': 'b'}`, `{"a": "b"}`},
		{"Single quotes kept when doubles present", `{"a": "it's"}`, `{"a": "it's"}`},
		{"Whitespace trimmed", "  \n[1]\n ", `[1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeJSON(tt.input); got != tt.expected {
				t.Errorf("SanitizeJSON(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"Object in prose", `Here you go: {"a": 1} hope that helps`, `{"a": 1}`, true},
		{"Array in prose", `The queries are ["x", "y"] as requested`, `["x", "y"]`, true},
		{"Array enclosing objects wins", `[{"a": 1}, {"b": 2}]`, `[{"a": 1}, {"b": 2}]`, true},
		{"Object wins when first", `{"a": [1, 2]} trailing [3]`, `{"a": [1, 2]}`, true},
		{"No fragment", "no structure here", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.input)
			if ok != tt.ok || got != tt.expected {
				t.Errorf("ExtractJSON(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Strict", `{"server": "a", "agent_role_prompt": "b"}`, false},
		{"Fenced", "```json\n{\"server\": \"a\", \"agent_role_prompt\": \"b\"}\n```", false},
		{"Prose wrapped", `Sure! {"server": "a", "agent_role_prompt": "b"} Done.`, false},
		{"Trailing comma inside prose", `Result: {"server": "a", "agent_role_prompt": "b",}`, false},
		{"Hopeless", "not json at all", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p AgentPersona
			err := DecodeJSON(tt.input, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && (p.Name != "a" || p.RolePrompt != "b") {
				t.Errorf("DecodeJSON(%q) decoded %+v", tt.input, p)
			}
		})
	}
}

func TestDecodeStringList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
		wantErr  bool
	}{
		{"Plain list", `["a", "b"]`, []string{"a", "b"}, false},
		{"Fenced list", "```json\n[\"a\"]\n```", []string{"a"}, false},
		{"Wrapped in queries object", `{"queries": ["a", "b"]}`, []string{"a", "b"}, false},
		{"Wrapped in arbitrary key", `{"subtopics": ["x"]}`, []string{"x"}, false},
		{"List in prose", `Here are the queries: ["a", "b"]`, []string{"a", "b"}, false},
		{"Not a list", `{"a": 1}`, nil, true},
		{"Garbage", "none of this parses", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeStringList(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeStringList(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("DecodeStringList(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
