package entity

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Plant is a manufacturing site code.
type Plant string

const (
	PlantP1 Plant = "p1"
	PlantP2 Plant = "p2"
	PlantP3 Plant = "p3"
	PlantP4 Plant = "p4"
	PlantP5 Plant = "p5"
)

func (p Plant) Valid() bool {
	switch p {
	case PlantP1, PlantP2, PlantP3, PlantP4, PlantP5:
		return true
	}
	return false
}

// PlantSet holds plant codes for membership checks. The fast-track routing
// rule (plants that skip level 3) is carried around as one of these, loaded
// from configuration.
type PlantSet map[Plant]struct{}

func NewPlantSet(plants ...Plant) PlantSet {
	s := make(PlantSet, len(plants))
	for _, p := range plants {
		s[p] = struct{}{}
	}
	return s
}

func (s PlantSet) Has(p Plant) bool {
	_, ok := s[p]
	return ok
}

// PlantList is a user's assigned plants, comma-joined at the storage boundary
// like RoleList.
type PlantList []Plant

func ParsePlantList(s string) PlantList {
	var list PlantList
	seen := make(map[Plant]bool)
	for _, tok := range strings.Split(s, ",") {
		p := Plant(strings.TrimSpace(tok))
		if p == "" || !p.Valid() || seen[p] {
			continue
		}
		seen[p] = true
		list = append(list, p)
	}
	return list
}

func (l PlantList) String() string {
	parts := make([]string, 0, len(l))
	for _, p := range l {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ",")
}

func (l PlantList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "", nil
	}
	return l.String(), nil
}

func (l *PlantList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case string:
		*l = ParsePlantList(v)
	case []byte:
		*l = ParsePlantList(string(v))
	default:
		return fmt.Errorf("failed to scan PlantList: %v", value)
	}
	return nil
}
