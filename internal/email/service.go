package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/redmonkez12/chatbot-auth/internal/config"
	"github.com/redmonkez12/chatbot-auth/internal/logging"
)

// ErrNotConfigured is returned when no SMTP host is set
var ErrNotConfigured = errors.New("smtp is not configured")

// sendFunc matches smtp.SendMail
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	smtpHost     string
	smtpPort     string
	smtpUser     string
	smtpPassword string
	fromEmail    string
	publicURL    string
	frontendURL  string
	send         sendFunc
}

func NewService(cfg config.EmailConfig) *Service {
	return &Service{
		smtpHost:     cfg.SMTPHost,
		smtpPort:     cfg.SMTPPort,
		smtpUser:     cfg.SMTPUser,
		smtpPassword: cfg.SMTPPassword,
		fromEmail:    cfg.SMTPUser,
		publicURL:    strings.TrimRight(cfg.PublicURL, "/"),
		frontendURL:  strings.TrimRight(cfg.FrontendURL, "/"),
		send:         smtp.SendMail,
	}
}

// VerificationLink points at the API route that consumes the token
func (s *Service) VerificationLink(token string) string {
	return fmt.Sprintf("%s/auth/verify/%s", s.publicURL, url.PathEscape(token))
}

// PasswordResetLink points at the frontend form that posts the token back
func (s *Service) PasswordResetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, url.QueryEscape(token))
}

// SendVerificationEmail sends an email verification link to the user
// This method is designed to be called in a goroutine
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := render(verificationMessage, s.VerificationLink(token))
	if err != nil {
		logger.Error("failed to render email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, verificationMessage.Subject, body); err != nil {
		logger.Error("failed to send verification email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("verification email sent", "email", toEmail)
	return nil
}

// SendPasswordResetEmail sends a password reset link to the user
// This method is designed to be called in a goroutine
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string) error {
	logger := logging.GetLoggerFromContext(ctx)

	body, err := render(passwordResetMessage, s.PasswordResetLink(token))
	if err != nil {
		logger.Error("failed to render password reset email template", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	if err := s.sendEmail(toEmail, passwordResetMessage.Subject, body); err != nil {
		logger.Error("failed to send password reset email", "email", toEmail, "error", err)
		return fmt.Errorf("send email: %w", err)
	}

	logger.Info("password reset email sent", "email", toEmail)
	return nil
}

func (s *Service) sendEmail(to, subject, body string) error {
	if s.smtpHost == "" {
		return ErrNotConfigured
	}

	auth := smtp.PlainAuth("", s.smtpUser, s.smtpPassword, s.smtpHost)

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		s.fromEmail, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)
	return s.send(addr, auth, s.fromEmail, []string{to}, msg)
}

// message is the copy of one kind of email; the layout is shared
type message struct {
	Subject string
	Heading string
	Title   string
	Intro   string
	Button  string
	Ignore  string
	Expiry  string
	Link    string
}

var verificationMessage = message{
	Subject: "Verify your email address",
	Heading: "Welcome!",
	Title:   "Verify your email address",
	Intro:   "Thanks for signing up! Click the button below to verify your email address and start chatting.",
	Button:  "Verify Email Address",
	Ignore:  "If you didn't create an account, you can safely ignore this email.",
	Expiry:  "This link will expire in 24 hours and works once.",
}

var passwordResetMessage = message{
	Subject: "Reset your password",
	Heading: "Password Reset Request",
	Title:   "Reset your password",
	Intro:   "You requested to reset your password. Click the button below to create a new password.",
	Button:  "Reset Password",
	Ignore:  "If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.",
	Expiry:  "This link will expire in 1 hour.",
}

var layout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #4F46E5; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
        .content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
        .button { display: inline-block; background-color: #4F46E5; color: white !important; padding: 12px 30px; text-decoration: none; border-radius: 5px; margin: 20px 0; }
        .footer { margin-top: 30px; font-size: 12px; color: #666; text-align: center; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Heading}}</h1>
    </div>
    <div class="content">
        <h2>{{.Title}}</h2>
        <p>{{.Intro}}</p>

        <a href="{{.Link}}" class="button" style="color: white !important;">{{.Button}}</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #4F46E5;">{{.Link}}</p>

        <p style="margin-top: 30px;">{{.Ignore}}</p>
    </div>
    <div class="footer">
        <p>{{.Expiry}}</p>
    </div>
</body>
</html>
`))

func render(m message, link string) (string, error) {
	m.Link = link

	var buf bytes.Buffer
	if err := layout.Execute(&buf, m); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}

	return buf.String(), nil
}
