package llm

import (
	"encoding/json"
	"testing"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain object untouched",
			input: `{"entities": []}`,
			want:  `{"entities": []}`,
		},
		{
			name:  "json code fence",
			input: "```json\n{\"entities\": []}\n```",
			want:  `{"entities": []}`,
		},
		{
			name:  "bare code fence",
			input: "```\n{\"a\": 1}\n```",
			want:  `{"a": 1}`,
		},
		{
			name:  "leading prose",
			input: "Here is the result:\n{\"a\": 1}",
			want:  `{"a": 1}`,
		},
		{
			name:  "trailing prose",
			input: "{\"a\": 1}\nLet me know if you need more.",
			want:  `{"a": 1}`,
		},
		{
			name:  "unquoted key after comma",
			input: `{"name": "x", type": "y"}`,
			want:  `{"name": "x", "type": "y"}`,
		},
		{
			name:  "unquoted key after brace",
			input: `{name": "x"}`,
			want:  `{"name": "x"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanJSON(tt.input)
			if got != tt.want {
				t.Errorf("CleanJSON(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanJSONParsable(t *testing.T) {
	inputs := []string{
		"```json\n{\"entities\": [{\"name\": \"acme\", type\": \"company\"}]}\n```",
		"The extraction follows.\n\n{\"entities\": []}\n\nDone.",
	}

	for _, in := range inputs {
		var v map[string]any
		if err := json.Unmarshal([]byte(CleanJSON(in)), &v); err != nil {
			t.Errorf("CleanJSON(%q) not parsable: %v", in, err)
		}
	}
}
