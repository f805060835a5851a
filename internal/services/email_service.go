package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"practicehub/internal/config"
	"practicehub/internal/observability"
	contextutils "practicehub/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/mail.v2"
)

// EmailServiceInterface defines the interface for email functionality
type EmailServiceInterface interface {
	SendStreakReminder(ctx context.Context, target *StreakReminderTarget) error
	IsEnabled() bool
}

// EmailService sends transactional email over SMTP. All sends are
// best-effort: the worker logs failures and moves on.
type EmailService struct {
	cfg    *config.Config
	logger *observability.Logger
	dialer *mail.Dialer
}

// NewEmailService creates a new EmailService instance
func NewEmailService(cfg *config.Config, logger *observability.Logger) *EmailService {
	var dialer *mail.Dialer
	if cfg.Email.Enabled && cfg.Email.SMTP.Host != "" {
		dialer = mail.NewDialer(
			cfg.Email.SMTP.Host,
			cfg.Email.SMTP.Port,
			cfg.Email.SMTP.Username,
			cfg.Email.SMTP.Password,
		)
	}

	return &EmailService{
		cfg:    cfg,
		logger: logger,
		dialer: dialer,
	}
}

var streakReminderTemplate = template.Must(template.New("streak_reminder").Parse(`
<html>
<body style="font-family: sans-serif;">
  <h2>Don't lose your {{.StreakDays}}-day streak, {{.Username}}!</h2>
  <p>You haven't practiced today. One quick quiz keeps your streak alive.</p>
  <p><a href="{{.AppURL}}">Practice now</a></p>
  <p style="color: #888; font-size: 12px;">{{.CurrentDate}}</p>
</body>
</html>
`))

// SendStreakReminder tells a user their streak lapses today without activity.
func (e *EmailService) SendStreakReminder(ctx context.Context, target *StreakReminderTarget) (err error) {
	ctx, span := observability.TraceWorkerFunction(ctx, "send_streak_reminder",
		observability.AttributeUserID(target.UserID),
		attribute.Int("streak.days", target.StreakDays),
	)
	defer observability.FinishSpan(span, &err)

	if !e.IsEnabled() {
		e.logger.Info(ctx, "Email disabled, skipping streak reminder", map[string]interface{}{
			"user_id": target.UserID,
		})
		return nil
	}
	if target.Email == "" {
		return nil
	}

	var body bytes.Buffer
	err = streakReminderTemplate.Execute(&body, map[string]interface{}{
		"Username":    target.Username,
		"StreakDays":  target.StreakDays,
		"AppURL":      e.cfg.Server.AppBaseURL,
		"CurrentDate": time.Now().Format("January 2, 2006"),
	})
	if err != nil {
		return contextutils.WrapError(err, "failed to render streak reminder")
	}

	m := mail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", e.cfg.Email.SMTP.FromName, e.cfg.Email.SMTP.FromAddress))
	m.SetHeader("To", target.Email)
	m.SetHeader("Subject", fmt.Sprintf("Your %d-day streak is at risk!", target.StreakDays))
	m.SetBody("text/html", body.String())

	if err = e.dialer.DialAndSend(m); err != nil {
		e.logger.Error(ctx, "Failed to send streak reminder", err, map[string]interface{}{
			"user_id": target.UserID,
		})
		return contextutils.WrapError(err, "failed to send streak reminder")
	}

	e.logger.Info(ctx, "Streak reminder sent", map[string]interface{}{
		"user_id": target.UserID,
	})
	return nil
}

// IsEnabled returns whether email functionality is enabled
func (e *EmailService) IsEnabled() bool {
	return e.cfg.Email.Enabled && e.cfg.Email.SMTP.Host != "" && e.dialer != nil
}
