package mcpclient

import (
	"fmt"
	"strings"
)

// AddressScheme is the only transport scheme the client speaks. The
// remainder of the address is the executable and its arguments joined
// by colons: stdio://executable:arg1:arg2:...
const AddressScheme = "stdio://"

// gitServerPrefix is the canonical argument shape of the git tool
// server. Addresses carrying it get their tail rejoined, because the
// repository path may itself contain colons (drive letters, URLs).
var gitServerPrefix = []string{"-m", "mcp_server_git", "--repository"}

// Address is a parsed server address ready to spawn.
type Address struct {
	Command string
	Args    []string
}

// ParseAddress splits a stdio:// address into an executable and its
// argument list. A bare executable gets no arguments. An address whose
// arguments start with the git server prefix must carry a repository
// path after it; the path is reassembled from the remaining segments
// so colons inside it survive. Anything else is passed through as-is.
func ParseAddress(raw string) (Address, error) {
	if !strings.HasPrefix(raw, AddressScheme) {
		return Address{}, NewTransportError(fmt.Sprintf("unsupported server address %q: only stdio:// is supported", raw))
	}

	body := strings.TrimPrefix(raw, AddressScheme)
	parts := strings.Split(body, ":")
	command := parts[0]
	if command == "" {
		return Address{}, NewTransportError(fmt.Sprintf("server address %q has no executable", raw))
	}
	if len(parts) == 1 {
		return Address{Command: command}, nil
	}

	rest := parts[1:]
	if hasGitServerPrefix(rest) {
		path := strings.Join(rest[len(gitServerPrefix):], ":")
		if path == "" {
			return Address{}, NewTransportError(fmt.Sprintf("server address %q is missing the repository path", raw))
		}
		args := append(append([]string{}, gitServerPrefix...), path)
		return Address{Command: command, Args: args}, nil
	}

	return Address{Command: command, Args: rest}, nil
}

func hasGitServerPrefix(args []string) bool {
	if len(args) < len(gitServerPrefix) {
		return false
	}
	for i, want := range gitServerPrefix {
		if args[i] != want {
			return false
		}
	}
	return true
}
