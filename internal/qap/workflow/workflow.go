// Package workflow is the QAP review state machine. It is deliberately free
// of storage and transport concerns: Apply computes the next status/level and
// the audit entries for an event, and the service layer persists the outcome
// inside one transaction.
package workflow

import (
	"errors"
	"fmt"

	"github.com/solacepv/qapflow/internal/qap/entity"
)

// Error taxonomy surfaced to callers. Handlers map these onto HTTP statuses;
// none of them leaves persisted state behind.
var (
	ErrUnauthorized = errors.New("operation not permitted for caller")
	ErrPrecondition = errors.New("qap is not in the required state")
	ErrValidation   = errors.New("invalid workflow input")
)

// Engine evaluates transitions. FastTrack is the set of plants whose QAPs
// skip level 3.
type Engine struct {
	FastTrack entity.PlantSet
}

func NewEngine(fastTrack entity.PlantSet) *Engine {
	return &Engine{FastTrack: fastTrack}
}

// Event is one workflow action against a QAP.
type Event interface {
	eventName() string
}

// SubmitEvent opens a freshly created QAP for level-2 review.
type SubmitEvent struct {
	Username string
}

// LevelResponseEvent records a reviewer response at levels 2-4. Acknowledged
// distinguishes a sign-off from a saved draft; drafts never advance the QAP.
// Required and Satisfied are the level-2 gating sets, computed by the caller
// inside the same transaction; Satisfied must already include this response
// when it is acknowledged.
type LevelResponseEvent struct {
	Level        int
	Role         entity.Role
	Username     string
	Acknowledged bool
	Required     entity.RoleSet
	Satisfied    entity.RoleSet
}

// FinalCommentsEvent is the requestor's hand-back that forwards the QAP to
// the plant head.
type FinalCommentsEvent struct {
	Role     entity.Role
	Username string
}

// DecisionEvent is the terminal plant-head approval or rejection.
type DecisionEvent struct {
	Approve  bool
	Role     entity.Role
	Username string
}

func (SubmitEvent) eventName() string        { return "submit" }
func (LevelResponseEvent) eventName() string { return "level_response" }
func (FinalCommentsEvent) eventName() string { return "final_comments" }
func (DecisionEvent) eventName() string      { return "decision" }

// Outcome is what Apply decided: the status/level the QAP must move to and
// the timeline entries to append, in order. Advanced is false when the event
// was recorded but the QAP stays where it is (partial level-2 progress).
type Outcome struct {
	Status   entity.Status
	Level    int
	Advanced bool
	Timeline []entity.TimelineEntry
}

// RequiredReviewRoles is the level-2 eligibility function: the union of
// review_by roles across every specification item (either kind) whose match
// is "no". Items that match the plant standard require no further review.
func RequiredReviewRoles(items []entity.SpecificationItem) entity.RoleSet {
	required := entity.NewRoleSet()
	for _, item := range items {
		if item.Match != entity.MatchNo {
			continue
		}
		for _, r := range item.ReviewBy {
			required.Add(r)
		}
	}
	return required
}

// RoleAllowedAtLevel is the per-level response gate. Level 2 accepts any
// reviewer role; levels 3 and 4 are single-role. Admin passes every gate.
func RoleAllowedAtLevel(role entity.Role, level int) bool {
	if role == entity.RoleAdmin {
		return true
	}
	switch level {
	case 2:
		return role.IsReviewer()
	case 3:
		return role == entity.RoleHead
	case 4:
		return role == entity.RoleTechnicalHead
	}
	return false
}

// Apply computes the transition for ev against the QAP's current state. It
// never mutates q.
func (e *Engine) Apply(q *entity.QAP, ev Event) (*Outcome, error) {
	switch event := ev.(type) {
	case SubmitEvent:
		return e.applySubmit(q, event)
	case LevelResponseEvent:
		return e.applyLevelResponse(q, event)
	case FinalCommentsEvent:
		return e.applyFinalComments(q, event)
	case DecisionEvent:
		return e.applyDecision(q, event)
	}
	return nil, fmt.Errorf("%w: unknown event %q", ErrValidation, ev.eventName())
}

func (e *Engine) applySubmit(q *entity.QAP, ev SubmitEvent) (*Outcome, error) {
	if q.Status != entity.StatusSubmitted || q.CurrentLevel != 1 {
		return nil, fmt.Errorf("%w: qap already in review (status=%s)", ErrPrecondition, q.Status)
	}
	return &Outcome{
		Status:   entity.StatusLevel2,
		Level:    2,
		Advanced: true,
		Timeline: []entity.TimelineEntry{
			{QAPID: q.ID, Level: 1, Action: fmt.Sprintf("QAP submitted by %s", ev.Username), ActedBy: ev.Username, ActedRole: entity.RoleRequestor},
			{QAPID: q.ID, Level: 2, Action: "Sent to Level 2 for review", ActedBy: entity.SystemActor},
		},
	}, nil
}

func (e *Engine) applyLevelResponse(q *entity.QAP, ev LevelResponseEvent) (*Outcome, error) {
	if ev.Level < 2 || ev.Level > 4 {
		return nil, fmt.Errorf("%w: level %d outside review range", ErrValidation, ev.Level)
	}
	if !RoleAllowedAtLevel(ev.Role, ev.Level) {
		return nil, fmt.Errorf("%w: role %s cannot respond at level %d", ErrUnauthorized, ev.Role, ev.Level)
	}
	if q.Status.Terminal() {
		return nil, fmt.Errorf("%w: qap is %s", ErrPrecondition, q.Status)
	}
	if q.CurrentLevel != ev.Level || q.Status != entity.StatusForReviewLevel(ev.Level) {
		return nil, fmt.Errorf("%w: qap is at level %d (%s), response targets level %d",
			ErrPrecondition, q.CurrentLevel, q.Status, ev.Level)
	}

	out := &Outcome{
		Status: q.Status,
		Level:  q.CurrentLevel,
		Timeline: []entity.TimelineEntry{
			{QAPID: q.ID, Level: ev.Level, Action: fmt.Sprintf("Level %d reviewed by %s", ev.Level, ev.Username), ActedBy: ev.Username, ActedRole: ev.Role},
		},
	}

	// A draft saves the response without moving the QAP, at any level.
	if !ev.Acknowledged {
		return out, nil
	}

	switch ev.Level {
	case 2:
		// Advance only once every required role has acknowledged. An empty
		// required set is vacuously satisfied.
		if !ev.Required.SubsetOf(ev.Satisfied) {
			return out, nil
		}
		if e.FastTrack.Has(q.Plant) {
			out.Status = entity.StatusLevel4
			out.Level = 4
			out.Advanced = true
			out.Timeline = append(out.Timeline, entity.TimelineEntry{
				QAPID: q.ID, Level: 4,
				Action:  "Level 2 completed, skipped Level 3, sent to Level 4",
				ActedBy: entity.SystemActor,
			})
		} else {
			out.Status = entity.StatusLevel3
			out.Level = 3
			out.Advanced = true
			out.Timeline = append(out.Timeline, entity.TimelineEntry{
				QAPID: q.ID, Level: 3,
				Action:  "Level 2 completed, sent to Level 3",
				ActedBy: entity.SystemActor,
			})
		}
	case 3:
		out.Status = entity.StatusLevel4
		out.Level = 4
		out.Advanced = true
		out.Timeline = append(out.Timeline, entity.TimelineEntry{
			QAPID: q.ID, Level: 4,
			Action:  "Level 3 completed, sent to Level 4",
			ActedBy: entity.SystemActor,
		})
	case 4:
		out.Status = entity.StatusFinalComments
		out.Level = 5
		out.Advanced = true
		out.Timeline = append(out.Timeline, entity.TimelineEntry{
			QAPID: q.ID, Level: 5,
			Action:  "Level 4 completed, sent back to Requestor for Final Comments",
			ActedBy: entity.SystemActor,
		})
	}
	return out, nil
}

func (e *Engine) applyFinalComments(q *entity.QAP, ev FinalCommentsEvent) (*Outcome, error) {
	if ev.Role != entity.RoleRequestor && ev.Role != entity.RoleAdmin {
		return nil, fmt.Errorf("%w: role %s cannot submit final comments", ErrUnauthorized, ev.Role)
	}
	if q.Status != entity.StatusFinalComments {
		return nil, fmt.Errorf("%w: qap is %s, final comments require %s",
			ErrPrecondition, q.Status, entity.StatusFinalComments)
	}
	return &Outcome{
		Status:   entity.StatusLevel5,
		Level:    5,
		Advanced: true,
		Timeline: []entity.TimelineEntry{
			{QAPID: q.ID, Level: 5, Action: "Sent to Plant Head for Approval", ActedBy: ev.Username, ActedRole: ev.Role},
		},
	}, nil
}

func (e *Engine) applyDecision(q *entity.QAP, ev DecisionEvent) (*Outcome, error) {
	if ev.Role != entity.RolePlantHead && ev.Role != entity.RoleAdmin {
		return nil, fmt.Errorf("%w: role %s cannot decide a QAP", ErrUnauthorized, ev.Role)
	}
	if q.Status != entity.StatusLevel5 {
		return nil, fmt.Errorf("%w: qap is %s, decision requires %s",
			ErrPrecondition, q.Status, entity.StatusLevel5)
	}
	status := entity.StatusRejected
	action := "Plant-head rejected QAP"
	if ev.Approve {
		status = entity.StatusApproved
		action = "Plant-head approved QAP"
	}
	return &Outcome{
		Status:   status,
		Level:    5,
		Advanced: true,
		Timeline: []entity.TimelineEntry{
			{QAPID: q.ID, Level: 5, Action: action, ActedBy: ev.Username, ActedRole: ev.Role},
		},
	}, nil
}
