package workflow

import (
	"errors"
	"testing"

	"github.com/solacepv/qapflow/internal/qap/entity"
)

func newEngine(fastTrack ...entity.Plant) *Engine {
	return NewEngine(entity.NewPlantSet(fastTrack...))
}

func qapAt(status entity.Status, level int, plant entity.Plant) *entity.QAP {
	return &entity.QAP{
		ID:           "qap-test-001",
		Plant:        plant,
		Status:       status,
		CurrentLevel: level,
		SubmittedBy:  "requestor1",
	}
}

func TestRequiredReviewRolesUnionOfDivergingItems(t *testing.T) {
	items := []entity.SpecificationItem{
		{Match: entity.MatchNo, ReviewBy: entity.RoleList{entity.RoleProduction, entity.RoleQuality}},
		{Match: entity.MatchNo, ReviewBy: entity.RoleList{entity.RoleQuality, entity.RoleTechnical}},
		{Match: entity.MatchYes, ReviewBy: entity.RoleList{entity.RoleHead}},
		{Match: entity.MatchPending, ReviewBy: entity.RoleList{entity.RoleTechnicalHead}},
	}

	required := RequiredReviewRoles(items)
	for _, want := range []entity.Role{entity.RoleProduction, entity.RoleQuality, entity.RoleTechnical} {
		if !required.Has(want) {
			t.Errorf("required set missing %s", want)
		}
	}
	if required.Has(entity.RoleHead) || required.Has(entity.RoleTechnicalHead) {
		t.Errorf("non-diverging items must not contribute reviewers, got %v", required.Sorted())
	}
}

func TestRequiredReviewRolesEmptyWhenNothingDiverges(t *testing.T) {
	items := []entity.SpecificationItem{
		{Match: entity.MatchYes, ReviewBy: entity.RoleList{entity.RoleProduction}},
		{Match: entity.MatchPending},
	}
	if got := RequiredReviewRoles(items); len(got) != 0 {
		t.Fatalf("expected empty required set, got %v", got.Sorted())
	}
}

func TestSubmitAdvancesToLevel2(t *testing.T) {
	e := newEngine()
	out, err := e.Apply(qapAt(entity.StatusSubmitted, 1, entity.PlantP4), SubmitEvent{Username: "requestor1"})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Status != entity.StatusLevel2 || out.Level != 2 || !out.Advanced {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(out.Timeline) != 2 {
		t.Fatalf("expected 2 timeline entries, got %d", len(out.Timeline))
	}
	if out.Timeline[1].ActedBy != entity.SystemActor {
		t.Errorf("advancement entry should be attributed to %s, got %s", entity.SystemActor, out.Timeline[1].ActedBy)
	}
}

func TestSubmitRejectedWhenAlreadyInReview(t *testing.T) {
	e := newEngine()
	_, err := e.Apply(qapAt(entity.StatusLevel2, 2, entity.PlantP4), SubmitEvent{Username: "requestor1"})
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestLevel2PartialAcknowledgementDoesNotAdvance(t *testing.T) {
	e := newEngine()
	out, err := e.Apply(qapAt(entity.StatusLevel2, 2, entity.PlantP4), LevelResponseEvent{
		Level:        2,
		Role:         entity.RoleProduction,
		Username:     "production1",
		Acknowledged: true,
		Required:     entity.NewRoleSet(entity.RoleProduction, entity.RoleQuality),
		Satisfied:    entity.NewRoleSet(entity.RoleProduction),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Advanced {
		t.Fatal("must not advance while quality is outstanding")
	}
	if out.Status != entity.StatusLevel2 || out.Level != 2 {
		t.Fatalf("state must be unchanged, got %s/%d", out.Status, out.Level)
	}
	if len(out.Timeline) != 1 {
		t.Fatalf("expected only the response entry, got %d entries", len(out.Timeline))
	}
}

func TestLevel2CompleteAdvancesToLevel3(t *testing.T) {
	e := newEngine(entity.PlantP2)
	out, err := e.Apply(qapAt(entity.StatusLevel2, 2, entity.PlantP4), LevelResponseEvent{
		Level:        2,
		Role:         entity.RoleQuality,
		Username:     "quality1",
		Acknowledged: true,
		Required:     entity.NewRoleSet(entity.RoleProduction, entity.RoleQuality),
		Satisfied:    entity.NewRoleSet(entity.RoleProduction, entity.RoleQuality),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Status != entity.StatusLevel3 || out.Level != 3 || !out.Advanced {
		t.Fatalf("expected advance to level-3, got %+v", out)
	}
	if got := out.Timeline[1].Action; got != "Level 2 completed, sent to Level 3" {
		t.Errorf("unexpected advancement action %q", got)
	}
}

func TestLevel2CompleteFastTrackSkipsLevel3(t *testing.T) {
	e := newEngine(entity.PlantP2)
	out, err := e.Apply(qapAt(entity.StatusLevel2, 2, entity.PlantP2), LevelResponseEvent{
		Level:        2,
		Role:         entity.RoleQuality,
		Username:     "quality1",
		Acknowledged: true,
		Required:     entity.NewRoleSet(entity.RoleQuality),
		Satisfied:    entity.NewRoleSet(entity.RoleQuality),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Status != entity.StatusLevel4 || out.Level != 4 {
		t.Fatalf("fast-track plant must skip level 3, got %s/%d", out.Status, out.Level)
	}
	if got := out.Timeline[1].Action; got != "Level 2 completed, skipped Level 3, sent to Level 4" {
		t.Errorf("unexpected advancement action %q", got)
	}
}

func TestLevel2VacuouslySatisfiedAdvancesOnFirstResponse(t *testing.T) {
	e := newEngine()
	out, err := e.Apply(qapAt(entity.StatusLevel2, 2, entity.PlantP4), LevelResponseEvent{
		Level:        2,
		Role:         entity.RoleProduction,
		Username:     "production1",
		Acknowledged: true,
		Required:     entity.NewRoleSet(),
		Satisfied:    entity.NewRoleSet(entity.RoleProduction),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !out.Advanced {
		t.Fatal("empty required set must advance on the first acknowledgement")
	}
}

func TestDraftResponseNeverAdvances(t *testing.T) {
	e := newEngine()
	cases := []struct {
		name  string
		q     *entity.QAP
		event LevelResponseEvent
	}{
		{"level 3 head draft", qapAt(entity.StatusLevel3, 3, entity.PlantP4),
			LevelResponseEvent{Level: 3, Role: entity.RoleHead, Username: "head1"}},
		{"level 4 technical-head draft", qapAt(entity.StatusLevel4, 4, entity.PlantP4),
			LevelResponseEvent{Level: 4, Role: entity.RoleTechnicalHead, Username: "techhead1"}},
		{"level 2 draft with vacuous gate", qapAt(entity.StatusLevel2, 2, entity.PlantP4),
			LevelResponseEvent{Level: 2, Role: entity.RoleProduction, Username: "production1",
				Required: entity.NewRoleSet(), Satisfied: entity.NewRoleSet()}},
	}
	for _, tc := range cases {
		out, err := e.Apply(tc.q, tc.event)
		if err != nil {
			t.Fatalf("%s: Apply failed: %v", tc.name, err)
		}
		if out.Advanced || out.Status != tc.q.Status || out.Level != tc.q.CurrentLevel {
			t.Errorf("%s: draft must keep the QAP at %s/%d, got %s/%d",
				tc.name, tc.q.Status, tc.q.CurrentLevel, out.Status, out.Level)
		}
		if len(out.Timeline) != 1 {
			t.Errorf("%s: expected only the response entry, got %d entries", tc.name, len(out.Timeline))
		}
	}
}

func TestLevel3OnlyHeadMayRespond(t *testing.T) {
	e := newEngine()
	q := qapAt(entity.StatusLevel3, 3, entity.PlantP4)

	_, err := e.Apply(q, LevelResponseEvent{Level: 3, Role: entity.RoleQuality, Username: "quality1"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for quality at level 3, got %v", err)
	}

	out, err := e.Apply(q, LevelResponseEvent{Level: 3, Role: entity.RoleHead, Username: "head1", Acknowledged: true})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Status != entity.StatusLevel4 || out.Level != 4 {
		t.Fatalf("expected advance to level-4, got %s/%d", out.Status, out.Level)
	}
}

func TestLevel4AdvancesToFinalComments(t *testing.T) {
	e := newEngine()
	out, err := e.Apply(qapAt(entity.StatusLevel4, 4, entity.PlantP4), LevelResponseEvent{
		Level: 4, Role: entity.RoleTechnicalHead, Username: "techhead1", Acknowledged: true,
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Status != entity.StatusFinalComments || out.Level != 5 {
		t.Fatalf("expected final-comments/5, got %s/%d", out.Status, out.Level)
	}
	if got := out.Timeline[1].Action; got != "Level 4 completed, sent back to Requestor for Final Comments" {
		t.Errorf("unexpected advancement action %q", got)
	}
}

func TestAdminPassesEveryLevelGate(t *testing.T) {
	for _, level := range []int{2, 3, 4} {
		if !RoleAllowedAtLevel(entity.RoleAdmin, level) {
			t.Errorf("admin must pass level %d", level)
		}
	}
	if RoleAllowedAtLevel(entity.RoleRequestor, 2) {
		t.Error("requestor must not respond at level 2")
	}
	if RoleAllowedAtLevel(entity.RoleTechnicalHead, 3) {
		t.Error("technical-head must not respond at level 3")
	}
	if RoleAllowedAtLevel(entity.RoleHead, 4) {
		t.Error("head must not respond at level 4")
	}
}

func TestResponseAgainstWrongLevelIsPrecondition(t *testing.T) {
	e := newEngine()
	_, err := e.Apply(qapAt(entity.StatusLevel3, 3, entity.PlantP4), LevelResponseEvent{
		Level: 2, Role: entity.RoleQuality, Username: "quality1",
		Required:  entity.NewRoleSet(entity.RoleQuality),
		Satisfied: entity.NewRoleSet(entity.RoleQuality),
	})
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
}

func TestResponseOutsideReviewRangeIsValidation(t *testing.T) {
	e := newEngine()
	for _, level := range []int{0, 1, 5, 6} {
		_, err := e.Apply(qapAt(entity.StatusLevel2, 2, entity.PlantP4), LevelResponseEvent{
			Level: level, Role: entity.RoleAdmin, Username: "admin",
		})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("level %d: expected ErrValidation, got %v", level, err)
		}
	}
}

func TestFinalCommentsRequiresRequestorAndState(t *testing.T) {
	e := newEngine()

	_, err := e.Apply(qapAt(entity.StatusFinalComments, 5, entity.PlantP4), FinalCommentsEvent{
		Role: entity.RoleQuality, Username: "quality1",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	_, err = e.Apply(qapAt(entity.StatusLevel4, 4, entity.PlantP4), FinalCommentsEvent{
		Role: entity.RoleRequestor, Username: "requestor1",
	})
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition before level 4 completes, got %v", err)
	}

	out, err := e.Apply(qapAt(entity.StatusFinalComments, 5, entity.PlantP4), FinalCommentsEvent{
		Role: entity.RoleRequestor, Username: "requestor1",
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Status != entity.StatusLevel5 {
		t.Fatalf("expected level-5, got %s", out.Status)
	}
	if got := out.Timeline[0].Action; got != "Sent to Plant Head for Approval" {
		t.Errorf("unexpected action %q", got)
	}
}

func TestDecisionTerminalStates(t *testing.T) {
	e := newEngine()

	out, err := e.Apply(qapAt(entity.StatusLevel5, 5, entity.PlantP4), DecisionEvent{
		Approve: true, Role: entity.RolePlantHead, Username: "planthead1",
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Status != entity.StatusApproved {
		t.Fatalf("expected approved, got %s", out.Status)
	}
	if got := out.Timeline[0].Action; got != "Plant-head approved QAP" {
		t.Errorf("unexpected action %q", got)
	}

	out, err = e.Apply(qapAt(entity.StatusLevel5, 5, entity.PlantP4), DecisionEvent{
		Approve: false, Role: entity.RolePlantHead, Username: "planthead1",
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if out.Status != entity.StatusRejected {
		t.Fatalf("expected rejected, got %s", out.Status)
	}
}

func TestDecisionRejectedOnTerminalQAP(t *testing.T) {
	e := newEngine()
	for _, status := range []entity.Status{entity.StatusApproved, entity.StatusRejected} {
		_, err := e.Apply(qapAt(status, 5, entity.PlantP4), DecisionEvent{
			Approve: true, Role: entity.RolePlantHead, Username: "planthead1",
		})
		if !errors.Is(err, ErrPrecondition) {
			t.Errorf("status %s: expected ErrPrecondition, got %v", status, err)
		}
	}
}

func TestDecisionRequiresPlantHead(t *testing.T) {
	e := newEngine()
	_, err := e.Apply(qapAt(entity.StatusLevel5, 5, entity.PlantP4), DecisionEvent{
		Approve: true, Role: entity.RoleHead, Username: "head1",
	})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestApplyNeverMutatesInput(t *testing.T) {
	e := newEngine(entity.PlantP2)
	q := qapAt(entity.StatusLevel2, 2, entity.PlantP2)

	_, err := e.Apply(q, LevelResponseEvent{
		Level: 2, Role: entity.RoleQuality, Username: "quality1", Acknowledged: true,
		Required:  entity.NewRoleSet(entity.RoleQuality),
		Satisfied: entity.NewRoleSet(entity.RoleQuality),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if q.Status != entity.StatusLevel2 || q.CurrentLevel != 2 {
		t.Fatalf("Apply mutated the QAP: %s/%d", q.Status, q.CurrentLevel)
	}
}
