// Package notify delivers the daily essay email over SMTP.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"

	"github.com/inkpress/inkpress/config"
	"github.com/inkpress/inkpress/internal/article"
)

var emailTemplate = template.Must(template.New("essay").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Georgia, serif; max-width: 600px; margin: 0 auto; padding: 24px; color: #1a1a1a;">
  <p style="color: #888; font-size: 13px; text-transform: uppercase; letter-spacing: 1px;">{{.Category}} &middot; {{.ReadingTime}} min read</p>
  <h1 style="font-size: 26px; line-height: 1.3;">{{.Title}}</h1>
  {{if .Summary}}<p style="font-size: 16px; color: #444; font-style: italic;">{{.Summary}}</p>{{end}}
  {{if .PageURL}}<p style="margin: 28px 0;">
    <a href="{{.PageURL}}" style="background: #1a1a1a; color: #fff; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Read the essay</a>
  </p>{{end}}
  {{if .AudioURL}}<p><a href="{{.AudioURL}}" style="color: #555;">Listen to the narration</a></p>{{end}}
  {{if .Tags}}<p style="color: #999; font-size: 13px;">{{range .Tags}}#{{.}} {{end}}</p>{{end}}
</body>
</html>
`))

type emailData struct {
	Title       string
	Category    string
	Summary     string
	ReadingTime int
	PageURL     string
	AudioURL    string
	Tags        []string
}

// Mailer sends essay notifications through a plain SMTP relay.
type Mailer struct {
	cfg    config.SMTPConfig
	logger *log.Logger

	// sendMail is swapped in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates a Mailer from config.
func New(cfg config.SMTPConfig, logger *log.Logger) *Mailer {
	if logger == nil {
		logger = log.New(os.Stdout, "[NOTIFY] ", log.LstdFlags)
	}
	return &Mailer{cfg: cfg, logger: logger, sendMail: smtp.SendMail}
}

// Configured reports whether enough SMTP settings are present to attempt a
// send.
func (m *Mailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.To != ""
}

// SendEssay renders and sends the notification email for a published
// document. pageURL and audioURL may be empty when the corresponding step was
// skipped or failed.
func (m *Mailer) SendEssay(ctx context.Context, doc article.Document, pageURL, audioURL string) error {
	if !m.Configured() {
		return fmt.Errorf("smtp not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, emailData{
		Title:       doc.Title,
		Category:    doc.Category,
		Summary:     doc.Summary,
		ReadingTime: doc.ReadingTimeMinutes(),
		PageURL:     pageURL,
		AudioURL:    audioURL,
		Tags:        doc.Tags,
	}); err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	subject := mime.QEncoding.Encode("utf-8", "Today's essay: "+doc.Title)
	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", m.cfg.To)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	recipients := splitRecipients(m.cfg.To)

	if err := m.sendMail(addr, auth, m.cfg.From, recipients, msg.Bytes()); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	m.logger.Printf("sent %q to %s", doc.Title, m.cfg.To)
	return nil
}

func splitRecipients(to string) []string {
	parts := strings.Split(to, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
