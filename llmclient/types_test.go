package llmclient

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParsedArguments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]any
	}{
		{
			name: "json object",
			raw:  `{"path": "main.go", "overwrite": true}`,
			want: map[string]any{"path": "main.go", "overwrite": true},
		},
		{
			name: "json encoded string",
			raw:  `"{\"path\": \"main.go\"}"`,
			want: map[string]any{"path": "main.go"},
		},
		{
			name: "empty",
			raw:  "",
			want: map[string]any{},
		},
		{
			name: "null",
			raw:  "null",
			want: map[string]any{},
		},
		{
			name: "garbage",
			raw:  `{not json`,
			want: map[string]any{},
		},
		{
			name: "string not containing object",
			raw:  `"hello"`,
			want: map[string]any{},
		},
		{
			name: "array",
			raw:  `[1, 2]`,
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := ToolCall{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(tt.raw)}
			got := tc.ParsedArguments()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsedArguments() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	u.Add(Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})

	if u.PromptTokens != 11 || u.CompletionTokens != 7 || u.TotalTokens != 18 {
		t.Errorf("unexpected usage after Add: %+v", u)
	}
}
