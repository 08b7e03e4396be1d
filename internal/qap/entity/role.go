package entity

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is a closed enumeration, stored as a plain string in JWT claims and DB columns.
type Role string

const (
	RoleRequestor     Role = "requestor"
	RoleProduction    Role = "production"
	RoleQuality       Role = "quality"
	RoleTechnical     Role = "technical"
	RoleHead          Role = "head"
	RoleTechnicalHead Role = "technical-head"
	RolePlantHead     Role = "plant-head"
	RoleAdmin         Role = "admin"
)

// ReviewerRoles are the roles that may submit structured level responses (levels 2-4).
var ReviewerRoles = []Role{RoleProduction, RoleQuality, RoleTechnical, RoleHead, RoleTechnicalHead}

func (r Role) Valid() bool {
	switch r {
	case RoleRequestor, RoleProduction, RoleQuality, RoleTechnical,
		RoleHead, RoleTechnicalHead, RolePlantHead, RoleAdmin:
		return true
	}
	return false
}

func (r Role) IsReviewer() bool {
	for _, rr := range ReviewerRoles {
		if r == rr {
			return true
		}
	}
	return false
}

// RoleList is a set of roles kept as a real slice in the model. The legacy
// persistence format is a comma-joined string, so the textual form only
// exists at the gorm boundary.
type RoleList []Role

// ParseRoleList splits a comma-joined role string into a RoleList. Tokens are
// trimmed and matched exactly (no case folding, role names are stored
// lower-case); empty and unknown tokens contribute nothing, duplicates are
// collapsed.
func ParseRoleList(s string) RoleList {
	var list RoleList
	seen := make(map[Role]bool)
	for _, tok := range strings.Split(s, ",") {
		r := Role(strings.TrimSpace(tok))
		if r == "" || !r.Valid() || seen[r] {
			continue
		}
		seen[r] = true
		list = append(list, r)
	}
	return list
}

func (l RoleList) String() string {
	parts := make([]string, 0, len(l))
	for _, r := range l {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}

func (l RoleList) Contains(r Role) bool {
	for _, x := range l {
		if x == r {
			return true
		}
	}
	return false
}

func (l RoleList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "", nil
	}
	return l.String(), nil
}

func (l *RoleList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case string:
		*l = ParseRoleList(v)
	case []byte:
		*l = ParseRoleList(string(v))
	default:
		return fmt.Errorf("failed to scan RoleList: %v", value)
	}
	return nil
}

// RoleSet is used by the workflow engine for required/satisfied comparisons.
type RoleSet map[Role]struct{}

func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s RoleSet) Add(r Role) {
	s[r] = struct{}{}
}

func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Sorted returns the members in canonical role order so projections and
// log lines are stable across runs.
func (s RoleSet) Sorted() []Role {
	canonical := []Role{
		RoleRequestor, RoleProduction, RoleQuality, RoleTechnical,
		RoleHead, RoleTechnicalHead, RolePlantHead, RoleAdmin,
	}
	out := make([]Role, 0, len(s))
	for _, r := range canonical {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// SubsetOf reports whether every role in s is present in other. An empty set
// is a subset of anything, which is exactly the vacuous-satisfaction rule for
// QAPs with no diverging specification items.
func (s RoleSet) SubsetOf(other RoleSet) bool {
	for r := range s {
		if !other.Has(r) {
			return false
		}
	}
	return true
}
