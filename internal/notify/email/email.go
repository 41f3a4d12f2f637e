package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/notify"
	mail "github.com/xhit/go-simple-mail/v2"
)

var _ notify.Notifier = (*NotificationService)(nil)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"bytes":  func(n int64) string { return humanize.IBytes(uint64(max(n, 0))) },
	"season": func(n int32) string { return fmt.Sprintf("S%02d", n) },
}).ParseFS(templatesFS, "templates/*.html"))

// NotificationService sends digests by email.
type NotificationService struct {
	config *config.EmailConfig
}

// New creates a new email notification service.
func New(cfg *config.EmailConfig) *NotificationService {
	return &NotificationService{
		config: cfg,
	}
}

func (n *NotificationService) Name() string {
	return "email"
}

// SendDigest mails the digest to every configured recipient.
func (n *NotificationService) SendDigest(ctx context.Context, digest notify.Digest) error {
	if !n.config.Enabled {
		log.Debug("Email notifications are disabled, skipping notification")
		return nil
	}
	if len(n.config.To) == 0 {
		log.Warn("No email recipients configured, skipping notification")
		return nil
	}

	subject := fmt.Sprintf("[episweep] %s - %d episodes pending deletion", digest.Kind, digest.TotalEpisodes())

	body, err := generateBody(digest)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return n.sendEmail(subject, body)
}

// generateBody renders the HTML body of a digest.
func generateBody(digest notify.Digest) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "digest.html", digest); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// sendEmail sends an email using go-simple-mail library.
func (n *NotificationService) sendEmail(subject, body string) error {
	server := mail.NewSMTPClient()
	server.Host = n.config.SMTPHost
	server.Port = n.config.SMTPPort
	server.Username = n.config.Username
	server.Password = n.config.Password

	switch {
	case n.config.UseSSL:
		server.Encryption = mail.EncryptionSSLTLS
	case n.config.UseTLS:
		server.Encryption = mail.EncryptionSTARTTLS
	default:
		server.Encryption = mail.EncryptionNone
	}

	if n.config.InsecureSkipVerify {
		server.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	server.KeepAlive = false
	server.ConnectTimeout = 10 * time.Second
	server.SendTimeout = 10 * time.Second

	smtpClient, err := server.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() {
		if closeErr := smtpClient.Close(); closeErr != nil {
			log.Warn("Failed to close SMTP client", "error", closeErr)
		}
	}()

	fromName := n.config.FromName
	if fromName == "" {
		fromName = "episweep"
	}

	email := mail.NewMSG()
	email.SetFrom(fmt.Sprintf("%s <%s>", fromName, n.config.FromEmail))
	email.AddTo(n.config.To...)
	email.SetSubject(subject)
	email.SetBody(mail.TextHTML, body)

	if err := email.Send(smtpClient); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info("Email notification sent successfully", "to", len(n.config.To), "subject", subject)
	return nil
}
