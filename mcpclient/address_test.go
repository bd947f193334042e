package mcpclient

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Address
	}{
		{
			name: "bare executable",
			raw:  "stdio://mcp-server-git",
			want: Address{Command: "mcp-server-git"},
		},
		{
			name: "git server with repository path",
			raw:  "stdio://python:-m:mcp_server_git:--repository:/srv/repos/widget",
			want: Address{
				Command: "python",
				Args:    []string{"-m", "mcp_server_git", "--repository", "/srv/repos/widget"},
			},
		},
		{
			name: "repository path containing colons",
			raw:  "stdio://python:-m:mcp_server_git:--repository:C:/repos/widget",
			want: Address{
				Command: "python",
				Args:    []string{"-m", "mcp_server_git", "--repository", "C:/repos/widget"},
			},
		},
		{
			name: "generic arguments pass through",
			raw:  "stdio://node:server.js:--verbose",
			want: Address{Command: "node", Args: []string{"server.js", "--verbose"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.raw)
			if err != nil {
				t.Fatalf("ParseAddress(%q) error: %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseAddress(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseAddressErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"wrong scheme", "http://localhost:8080"},
		{"empty body", "stdio://"},
		{"empty executable", "stdio://:arg"},
		{"git prefix without path", "stdio://python:-m:mcp_server_git:--repository"},
		{"git prefix with empty path", "stdio://python:-m:mcp_server_git:--repository:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAddress(tt.raw)
			var transportErr *TransportError
			if !errors.As(err, &transportErr) {
				t.Errorf("ParseAddress(%q) = %v, want TransportError", tt.raw, err)
			}
		})
	}
}
