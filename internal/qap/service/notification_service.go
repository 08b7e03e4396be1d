package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/solacepv/qapflow/internal/config"
	"github.com/solacepv/qapflow/internal/qap/entity"
	"github.com/solacepv/qapflow/internal/qap/repository"
)

// NotificationService emails workflow events to the people waiting on them.
// Delivery is best-effort: a dead SMTP relay must never fail or slow down a
// workflow transaction, so the event hooks send from a goroutine and only
// log failures.
type NotificationService struct {
	cfg     *config.Config
	users   *repository.UserRepository
	dialer  *gomail.Dialer
	enabled bool
	logger  *zap.Logger
}

func NewNotificationService(cfg *config.Config, users *repository.UserRepository, logger *zap.Logger) *NotificationService {
	s := &NotificationService{
		cfg:    cfg,
		users:  users,
		logger: logger,
	}
	if cfg.SMTP.Host != "" {
		s.dialer = gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		s.enabled = true
	}
	return s
}

func (s *NotificationService) shareLink(qapID string) string {
	return fmt.Sprintf("%s/qaps/%s", s.cfg.Server.BaseURL, qapID)
}

func (s *NotificationService) send(to, subject, body string) error {
	if !s.enabled {
		return nil
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.SMTP.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return s.dialer.DialAndSend(m)
}

func (s *NotificationService) notifySubmitter(qap *entity.QAP, subject, body string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		user, err := s.users.FindByUsername(ctx, qap.SubmittedBy)
		if err != nil || user.Email == "" {
			s.logger.Debug("no email on file for submitter",
				zap.String("qap_id", qap.ID),
				zap.String("username", qap.SubmittedBy))
			return
		}
		if err := s.send(user.Email, subject, body); err != nil {
			s.logger.Warn("failed to send notification email",
				zap.String("qap_id", qap.ID),
				zap.String("to", user.Email),
				zap.Error(err))
		}
	}()
}

// NotifyQAPCreated confirms submission to the requestor.
func (s *NotificationService) NotifyQAPCreated(qap *entity.QAP) {
	s.notifySubmitter(qap,
		fmt.Sprintf("QAP %s submitted for review", qap.ProjectName),
		fmt.Sprintf("Your QAP for <b>%s / %s</b> (plant %s) has entered level-2 review.<br>Track it: <a href=%q>%s</a>",
			qap.CustomerName, qap.ProjectName, qap.Plant, s.shareLink(qap.ID), s.shareLink(qap.ID)))
}

// NotifyAdvanced tells the requestor the QAP moved to a new stage.
func (s *NotificationService) NotifyAdvanced(qap *entity.QAP) {
	s.notifySubmitter(qap,
		fmt.Sprintf("QAP %s moved to %s", qap.ProjectName, qap.Status),
		fmt.Sprintf("QAP <b>%s / %s</b> is now at %s (level %d).<br><a href=%q>%s</a>",
			qap.CustomerName, qap.ProjectName, qap.Status, qap.CurrentLevel, s.shareLink(qap.ID), s.shareLink(qap.ID)))
}

// NotifyDecision tells the requestor the terminal outcome, including the
// plant head's feedback on rejection.
func (s *NotificationService) NotifyDecision(qap *entity.QAP) {
	subject := fmt.Sprintf("QAP %s approved", qap.ProjectName)
	body := fmt.Sprintf("QAP <b>%s / %s</b> was approved by %s.",
		qap.CustomerName, qap.ProjectName, qap.Approver)
	if qap.Status == entity.StatusRejected {
		subject = fmt.Sprintf("QAP %s rejected", qap.ProjectName)
		body = fmt.Sprintf("QAP <b>%s / %s</b> was rejected by %s.<br>Feedback: %s",
			qap.CustomerName, qap.ProjectName, qap.Approver, qap.Feedback)
	}
	s.notifySubmitter(qap, subject, body+fmt.Sprintf("<br><a href=%q>%s</a>", s.shareLink(qap.ID), s.shareLink(qap.ID)))
}

// Share emails a read link for a QAP to an arbitrary address, synchronously
// so the caller learns about delivery failure.
func (s *NotificationService) Share(_ context.Context, qap *entity.QAP, email, sharedBy string) error {
	if !s.enabled {
		return fmt.Errorf("email delivery is not configured")
	}
	return s.send(email,
		fmt.Sprintf("QAP shared with you: %s / %s", qap.CustomerName, qap.ProjectName),
		fmt.Sprintf("%s shared a QAP with you.<br>Customer: %s<br>Project: %s<br>Status: %s<br><a href=%q>%s</a>",
			sharedBy, qap.CustomerName, qap.ProjectName, qap.Status, s.shareLink(qap.ID), s.shareLink(qap.ID)))
}
