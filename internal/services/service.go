package services

import (
	"fmt"
	"html"
	"log"

	"github.com/resend/resend-go/v2"

	"SafeHold/internal/config"
)

type EmailService struct {
	Client *resend.Client
	From   string
}

func NewEmailService(cfg config.EmailConfig) *EmailService {
	log.Printf("📧 Email Service Initialized (Resend)")
	log.Printf("   - From Email: %s", cfg.From)
	log.Printf("   - API Key: %s", config.Mask(cfg.ResendAPIKey))

	if cfg.ResendAPIKey == "" {
		log.Printf("⚠️  WARNING: RESEND_API_KEY is empty!")
	}

	return &EmailService{
		Client: resend.NewClient(cfg.ResendAPIKey),
		From:   cfg.From,
	}
}

// Send delivers one HTML email and returns the provider message id.
func (es *EmailService) Send(to, subject, htmlBody string) (string, error) {
	params := &resend.SendEmailRequest{
		From:    es.From,
		To:      []string{to},
		Subject: subject,
		Html:    htmlBody,
	}

	sent, err := es.Client.Emails.Send(params)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	return sent.Id, nil
}

func escrowEmailHTML(title, message string) string {
	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .footer { margin-top: 30px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <h2>%s</h2>
        <p>%s</p>
        <div class="footer">
            <p>This is an automated message, please do not reply.</p>
        </div>
    </div>
</body>
</html>
`, html.EscapeString(title), html.EscapeString(message))
}
