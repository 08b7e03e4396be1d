package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/repository"
	"github.com/solacepv/qapflow/internal/qap/workflow"
	"github.com/solacepv/qapflow/pkg/metrics"
)

// Actor identifies the authenticated caller of a workflow operation.
type Actor struct {
	Username string
	Role     entity.Role
	Plants   []entity.Plant
}

// LevelResponseInput is one reviewer submission. Comments is a free-form
// per-item map; Acknowledged marks the role's sign-off. A submission without
// acknowledgement saves progress but never advances the QAP.
type LevelResponseInput struct {
	Acknowledged bool         `json:"acknowledged"`
	Comments     entity.JSONB `json:"comments"`
}

type FinalCommentsInput struct {
	Comments       string `json:"comments" binding:"required"`
	AttachmentName string `json:"attachment_name"`
	AttachmentURL  string `json:"attachment_url"`
}

// ReviewService runs every workflow transition. Each operation is one
// transaction: lock the QAP row, record the action, let the engine decide,
// apply the guarded update, append the timeline. The row lock serializes
// concurrent responses; the guarded update makes double advancement
// impossible even without it.
type ReviewService struct {
	db           *gorm.DB
	repos        *repository.Repositories
	engine       *workflow.Engine
	notification *NotificationService
	logger       *zap.Logger
}

func NewReviewService(
	db *gorm.DB,
	repos *repository.Repositories,
	engine *workflow.Engine,
	notification *NotificationService,
	logger *zap.Logger,
) *ReviewService {
	return &ReviewService{
		db:           db,
		repos:        repos,
		engine:       engine,
		notification: notification,
		logger:       logger,
	}
}

func (s *ReviewService) plantAllowed(actor Actor, plant entity.Plant) bool {
	if actor.Role == entity.RoleAdmin || len(actor.Plants) == 0 {
		return true
	}
	for _, p := range actor.Plants {
		if p == plant {
			return true
		}
	}
	return false
}

// SubmitLevelResponse records a reviewer response at levels 2-4 and advances
// the QAP when the level's gate is satisfied. Re-submission by the same role
// overwrites the previous response.
func (s *ReviewService) SubmitLevelResponse(ctx context.Context, qapID string, level int, actor Actor, in LevelResponseInput) (*entity.QAP, error) {
	var result *entity.QAP
	var outcome *workflow.Outcome

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qap, err := s.repos.QAP.FindForUpdate(ctx, tx, qapID)
		if err != nil {
			return err
		}
		if !s.plantAllowed(actor, qap.Plant) {
			return fmt.Errorf("%w: %s is outside your plant scope", workflow.ErrUnauthorized, qap.Plant)
		}

		var required entity.RoleSet
		if level == 2 {
			items, err := s.repos.QAP.FindItems(ctx, tx, qapID)
			if err != nil {
				return err
			}
			required = workflow.RequiredReviewRoles(items)
			// A QAP with diverging items only takes responses from the roles
			// those items name. One with none takes any reviewer's
			// acknowledgement and advances on the first.
			if len(required) > 0 && actor.Role != entity.RoleAdmin && !required.Has(actor.Role) {
				return fmt.Errorf("%w: role %s is not required on this QAP", workflow.ErrUnauthorized, actor.Role)
			}
		} else {
			required = entity.NewRoleSet()
		}

		resp := &entity.LevelResponse{
			ID:           uuid.NewString(),
			QAPID:        qapID,
			Level:        level,
			Role:         actor.Role,
			Username:     actor.Username,
			Acknowledged: in.Acknowledged,
			Comments:     in.Comments,
			RespondedAt:  time.Now(),
		}
		if err := s.repos.Response.Upsert(ctx, tx, resp); err != nil {
			return err
		}

		satisfied, err := s.repos.Response.AcknowledgedRoles(ctx, tx, qapID, level)
		if err != nil {
			return err
		}

		out, err := s.engine.Apply(qap, workflow.LevelResponseEvent{
			Level:        level,
			Role:         actor.Role,
			Username:     actor.Username,
			Acknowledged: in.Acknowledged,
			Required:     required,
			Satisfied:    satisfied,
		})
		if err != nil {
			return err
		}

		if out.Advanced {
			ok, err := s.repos.QAP.Advance(ctx, tx, qapID, qap.CurrentLevel, out.Level, out.Status)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: qap advanced concurrently", workflow.ErrPrecondition)
			}
			qap.Status = out.Status
			qap.CurrentLevel = out.Level
		}
		if err := s.repos.Timeline.Append(ctx, tx, out.Timeline); err != nil {
			return err
		}

		result = qap
		outcome = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.LevelResponsesTotal.WithLabelValues(strconv.Itoa(level), string(actor.Role)).Inc()
	if outcome.Advanced {
		metrics.TransitionsTotal.WithLabelValues(string(outcome.Status)).Inc()
		s.logger.Info("qap advanced",
			zap.String("qap_id", qapID),
			zap.Int("level", outcome.Level),
			zap.String("status", string(outcome.Status)))
		s.notification.NotifyAdvanced(result)
	}
	return result, nil
}

// SubmitFinalComments is the requestor's hand-back after level 4. The
// comments and optional attachment are written exactly once, guarded by the
// status the update expects.
func (s *ReviewService) SubmitFinalComments(ctx context.Context, qapID string, actor Actor, in FinalCommentsInput) (*entity.QAP, error) {
	var result *entity.QAP

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qap, err := s.repos.QAP.FindForUpdate(ctx, tx, qapID)
		if err != nil {
			return err
		}
		if actor.Role != entity.RoleAdmin && actor.Username != qap.SubmittedBy {
			return fmt.Errorf("%w: only the submitting requestor may add final comments", workflow.ErrUnauthorized)
		}

		out, err := s.engine.Apply(qap, workflow.FinalCommentsEvent{
			Role:     actor.Role,
			Username: actor.Username,
		})
		if err != nil {
			return err
		}

		now := time.Now()
		ok, err := s.repos.QAP.UpdateFields(ctx, tx, qapID, entity.StatusFinalComments, map[string]interface{}{
			"status":                out.Status,
			"current_level":         out.Level,
			"final_comments":        in.Comments,
			"final_comments_by":     actor.Username,
			"final_comments_at":     now,
			"final_attachment_name": in.AttachmentName,
			"final_attachment_url":  in.AttachmentURL,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: qap advanced concurrently", workflow.ErrPrecondition)
		}
		if err := s.repos.Timeline.Append(ctx, tx, out.Timeline); err != nil {
			return err
		}

		qap.Status = out.Status
		qap.CurrentLevel = out.Level
		qap.FinalComments = in.Comments
		qap.FinalCommentsBy = actor.Username
		qap.FinalCommentsAt = &now
		qap.FinalAttachmentName = in.AttachmentName
		qap.FinalAttachmentURL = in.AttachmentURL
		result = qap
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(result.Status)).Inc()
	s.notification.NotifyAdvanced(result)
	return result, nil
}

// Approve records the plant head's terminal approval.
func (s *ReviewService) Approve(ctx context.Context, qapID string, actor Actor, feedback string) (*entity.QAP, error) {
	return s.decide(ctx, qapID, actor, true, feedback)
}

// Reject records the plant head's terminal rejection. Feedback is mandatory
// so the requestor knows what to fix in the next QAP.
func (s *ReviewService) Reject(ctx context.Context, qapID string, actor Actor, feedback string) (*entity.QAP, error) {
	if feedback == "" {
		return nil, fmt.Errorf("%w: rejection requires feedback", workflow.ErrValidation)
	}
	return s.decide(ctx, qapID, actor, false, feedback)
}

func (s *ReviewService) decide(ctx context.Context, qapID string, actor Actor, approve bool, feedback string) (*entity.QAP, error) {
	var result *entity.QAP

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		qap, err := s.repos.QAP.FindForUpdate(ctx, tx, qapID)
		if err != nil {
			return err
		}
		if !s.plantAllowed(actor, qap.Plant) {
			return fmt.Errorf("%w: %s is outside your plant scope", workflow.ErrUnauthorized, qap.Plant)
		}

		out, err := s.engine.Apply(qap, workflow.DecisionEvent{
			Approve:  approve,
			Role:     actor.Role,
			Username: actor.Username,
		})
		if err != nil {
			return err
		}

		now := time.Now()
		ok, err := s.repos.QAP.UpdateFields(ctx, tx, qapID, entity.StatusLevel5, map[string]interface{}{
			"status":      out.Status,
			"approver":    actor.Username,
			"approved_at": now,
			"feedback":    feedback,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: qap decided concurrently", workflow.ErrPrecondition)
		}
		if err := s.repos.Timeline.Append(ctx, tx, out.Timeline); err != nil {
			return err
		}

		qap.Status = out.Status
		qap.Approver = actor.Username
		qap.ApprovedAt = &now
		qap.Feedback = feedback
		result = qap
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(result.Status)).Inc()
	s.logger.Info("qap decided",
		zap.String("qap_id", qapID),
		zap.String("status", string(result.Status)),
		zap.String("approver", actor.Username))
	s.notification.NotifyDecision(result)
	return result, nil
}
