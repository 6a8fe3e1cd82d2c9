package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
)

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromName     string
	FromEmail    string
}

// EmailService sends billing emails over SMTP
type EmailService struct {
	config EmailConfig
}

// NewEmailService creates a new email service
func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{config: config}
}

// SendPaymentLinkEmail emails a hosted checkout link for a pending payment.
func (s *EmailService) SendPaymentLinkEmail(toEmail, clientName, description, amount, link string) error {
	htmlContent, err := s.renderPaymentLinkEmail(clientName, description, amount, link)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Payment request: %s", description)
	message := s.buildHTMLEmail(toEmail, subject, htmlContent)

	return s.sendEmail(toEmail, message)
}

// sendEmail sends an email using SMTP
func (s *EmailService) sendEmail(to string, message []byte) error {
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)

	err := smtp.SendMail(addr, auth, s.config.FromEmail, []string{to}, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// buildHTMLEmail builds an HTML email message
func (s *EmailService) buildHTMLEmail(to, subject, htmlBody string) []byte {
	headers := fmt.Sprintf(
		"From: %s <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=\"UTF-8\"\r\n"+
			"\r\n",
		s.config.FromName,
		s.config.FromEmail,
		to,
		subject,
	)
	return []byte(headers + htmlBody)
}

const paymentLinkTemplate = `
<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
</head>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; margin: 0; padding: 20px;">
  <div style="max-width: 560px; margin: 0 auto; background-color: #ffffff; border-radius: 8px; padding: 32px;">
    <h2 style="color: #333333; margin-top: 0;">Payment Request</h2>
    <p style="color: #555555;">Hi {{.ClientName}},</p>
    <p style="color: #555555;">You have a pending payment:</p>
    <table style="width: 100%; margin: 16px 0; border-collapse: collapse;">
      <tr>
        <td style="padding: 8px 0; color: #888888;">Description</td>
        <td style="padding: 8px 0; color: #333333; text-align: right;">{{.Description}}</td>
      </tr>
      <tr>
        <td style="padding: 8px 0; color: #888888;">Amount</td>
        <td style="padding: 8px 0; color: #333333; text-align: right; font-weight: bold;">{{.Amount}}</td>
      </tr>
    </table>
    <p style="text-align: center; margin: 32px 0;">
      <a href="{{.Link}}" style="background-color: #2563eb; color: #ffffff; padding: 12px 32px; border-radius: 6px; text-decoration: none; display: inline-block;">Pay Now</a>
    </p>
    <p style="color: #999999; font-size: 12px;">If the button does not work, copy this link into your browser:<br>{{.Link}}</p>
  </div>
</body>
</html>
`

func (s *EmailService) renderPaymentLinkEmail(clientName, description, amount, link string) (string, error) {
	tmpl, err := template.New("payment_link").Parse(paymentLinkTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, map[string]string{
		"ClientName":  clientName,
		"Description": description,
		"Amount":      amount,
		"Link":        link,
	})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}
