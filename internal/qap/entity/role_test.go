package entity

import (
	"reflect"
	"testing"
)

func TestParseRoleListTrimsAndDedupes(t *testing.T) {
	got := ParseRoleList(" production , quality,production,  technical-head ")
	want := RoleList{RoleProduction, RoleQuality, RoleTechnicalHead}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseRoleList = %v, want %v", got, want)
	}
}

func TestParseRoleListDropsUnknownTokens(t *testing.T) {
	got := ParseRoleList("production,manager,,quality,TECHNICAL")
	want := RoleList{RoleProduction, RoleQuality}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseRoleList = %v, want %v", got, want)
	}
}

func TestParseRoleListEmptyString(t *testing.T) {
	if got := ParseRoleList(""); len(got) != 0 {
		t.Fatalf("ParseRoleList(\"\") = %v, want empty", got)
	}
}

// technical must never match technical-head; exact-token matching is the
// whole point of keeping RoleList a real set.
func TestRoleListContainsExactMatch(t *testing.T) {
	list := ParseRoleList("technical-head")
	if list.Contains(RoleTechnical) {
		t.Fatal("technical-head list must not contain technical")
	}
	if !list.Contains(RoleTechnicalHead) {
		t.Fatal("technical-head list must contain technical-head")
	}
}

func TestRoleListStorageRoundTrip(t *testing.T) {
	list := RoleList{RoleProduction, RoleQuality, RoleTechnical}

	value, err := list.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if value != "production,quality,technical" {
		t.Fatalf("Value = %v", value)
	}

	var scanned RoleList
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !reflect.DeepEqual(scanned, list) {
		t.Fatalf("round trip = %v, want %v", scanned, list)
	}
}

func TestRoleSetSubsetOf(t *testing.T) {
	required := NewRoleSet(RoleProduction, RoleQuality)
	satisfied := NewRoleSet(RoleProduction)

	if required.SubsetOf(satisfied) {
		t.Fatal("missing quality must not be a subset")
	}
	satisfied.Add(RoleQuality)
	if !required.SubsetOf(satisfied) {
		t.Fatal("all required roles present, must be subset")
	}
	// Superset acknowledgements are fine.
	satisfied.Add(RoleTechnical)
	if !required.SubsetOf(satisfied) {
		t.Fatal("extra acknowledged roles must not break subset")
	}
	if !NewRoleSet().SubsetOf(NewRoleSet()) {
		t.Fatal("empty set must be a subset of the empty set")
	}
}

func TestStatusExpectedLevelTable(t *testing.T) {
	cases := map[Status]int{
		StatusSubmitted:     1,
		StatusLevel2:        2,
		StatusLevel3:        3,
		StatusLevel4:        4,
		StatusFinalComments: 5,
		StatusLevel5:        5,
		StatusApproved:      5,
		StatusRejected:      5,
	}
	for status, level := range cases {
		if got := status.ExpectedLevel(); got != level {
			t.Errorf("ExpectedLevel(%s) = %d, want %d", status, got, level)
		}
	}
	if Status("bogus").Valid() {
		t.Error("bogus status must not be valid")
	}
}
