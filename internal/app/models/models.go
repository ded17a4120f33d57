package models

import (
	"fmt"
	"strings"
)

// Role is the single group a user belongs to
type Role string

const (
	RoleStudent     Role = "STUDENT"
	RoleAssistant   Role = "ASSISTANT"
	RoleCoordinator Role = "COURSE_COORDINATOR"
)

// Roles lists every role in a fixed order
var Roles = []Role{RoleStudent, RoleAssistant, RoleCoordinator}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAssistant, RoleCoordinator:
		return true
	}
	return false
}

// ParseRole accepts the role names case-insensitively. "coordinator" is accepted as a short form.
func ParseRole(s string) (Role, error) {
	v := Role(strings.ToUpper(strings.TrimSpace(s)))
	if v == "COORDINATOR" {
		v = RoleCoordinator
	}
	if !v.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return v, nil
}
