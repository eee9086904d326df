package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"reselldash/internal/config"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 实现邮件通知。
type EmailNotifier struct {
	cfg    *config.EmailConfig
	logger *slog.Logger
}

// NewEmailNotifier 创建一个新的邮件通知器。
func NewEmailNotifier(cfg *config.EmailConfig, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendSyncSummary 发送同步摘要邮件。
//
// SMTP 配置不完整或收件人为空时跳过发送, 同步结果不受通知影响。
func (n *EmailNotifier) SendSyncSummary(ctx context.Context, summary SyncSummary, toEmail string) error {
	if n.cfg.SMTPHost == "" || n.cfg.SMTPUser == "" || n.cfg.FromEmail == "" {
		n.logger.Warn("email config missing, skip notification")
		return nil
	}
	if strings.TrimSpace(toEmail) == "" {
		n.logger.Warn("email recipient empty, skip notification")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("[ResellDash] Sync finished: %d new items", summary.Imported))

	m.SetBody("text/html", n.buildHTMLBody(summary))

	d := gomail.NewDialer(n.cfg.SMTPHost, n.cfg.SMTPPort, n.cfg.SMTPUser, n.cfg.SMTPPass)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("email notification sent",
		slog.String("to", toEmail),
		slog.Int("imported", summary.Imported))
	return nil
}

func (n *EmailNotifier) buildHTMLBody(summary SyncSummary) string {
	label := summary.QueryLabel
	if label == "" {
		label = summary.QueryURL
	}

	template := `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8" />
<style>
  body { font-family: Arial, sans-serif; background: #f6f7fb; color: #1f2937; }
  .card { max-width: 600px; margin: 24px auto; background: #ffffff; border-radius: 12px; overflow: hidden; border: 1px solid #e5e7eb; }
  .header { background: #0f172a; color: #ffffff; padding: 16px 20px; font-size: 16px; font-weight: bold; }
  .content { padding: 20px; }
  .count { font-size: 26px; font-weight: bold; color: #22c55e; margin: 8px 0 12px; }
  .row { font-size: 14px; margin-bottom: 6px; }
  .cta { display: inline-block; padding: 12px 20px; background: #0f172a; color: #fff; text-decoration: none; border-radius: 8px; font-weight: bold; }
  .footer { margin-top: 20px; font-size: 12px; color: #6b7280; }
</style>
</head>
<body>
  <div class="card">
    <div class="header">[ResellDash] Marketplace sync</div>
    <div class="content">
      <div class="count">%d new items imported</div>
      <div class="row">Query: %s</div>
      <div class="row">Skipped: %d &middot; Errors: %d</div>
      <div style="text-align:center; margin: 16px 0;">
        <a class="cta" href="%s" target="_blank">Open search on Vinted</a>
      </div>
      <div class="footer">Elapsed: %s</div>
    </div>
  </div>
</body>
</html>`

	return fmt.Sprintf(template, summary.Imported, label, summary.Skipped, summary.Errors, summary.QueryURL, summary.Elapsed)
}
