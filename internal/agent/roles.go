package agent

import (
	"fmt"
	"strings"

	"github.com/rangelab/labctl/internal/domain"
)

// Role identifies one of the two lab agents.
type Role string

const (
	RoleRed  Role = "red"
	RoleBlue Role = "blue"
)

// ParseRole validates a caller-supplied agent name.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(s)) {
	case RoleRed:
		return RoleRed, nil
	case RoleBlue:
		return RoleBlue, nil
	}
	return "", fmt.Errorf("unknown agent %q (use red or blue): %w", s, domain.ErrValidation)
}

// SystemPrompt returns the role's standing instruction.
func (r Role) SystemPrompt() string {
	switch r {
	case RoleRed:
		return "Execute the requested reconnaissance or attack simulation."
	case RoleBlue:
		return "Analyze security events and provide defensive recommendations."
	}
	return ""
}
