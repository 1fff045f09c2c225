package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/wneessen/go-mail"
)

// DefaultEmailTemplate is used when no template file is configured.
const DefaultEmailTemplate = `<html>
  <style>
    div {
        background-color: {{.Background}};
        border: 1px solid #bbbbbb;
        padding: 0.2em;
        width: 40%;
        margin: 1em;
    }
    div p {
        font-size: 110%;
        padding-left: 1em;
    }
  </style>
  <body>
    <p>Automated email from supcut</p>
    <div><p>{{.Category}}: {{.Name}}</p></div>
    <p>{{range $i, $line := .Lines}}{{if $i}}<br/>{{end}}{{$line}}{{end}}</p>
  </body>
</html>
`

var categoryBackground = map[Category]string{
	CategorySuccess: "#eeffee",
	CategoryFailure: "#ffeeee",
}

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	Server     string
	Port       int
	Sender     string
	Receivers  []string
	SubjectTag string
	Username   string
	Password   string
}

// Enabled reports whether enough is configured to send mail.
func (c EmailConfig) Enabled() bool {
	return c.Server != "" && c.Sender != "" && len(c.Receivers) > 0
}

type emailData struct {
	Category   Category
	Name       string
	Lines      []string
	Background string
}

// Email sends HTML email for success and failure notifications.
type Email struct {
	cfg  EmailConfig
	tmpl *template.Template
	send func(ctx context.Context, msg *mail.Msg) error
}

// NewEmail creates an email notifier. templatePath may be empty to use
// DefaultEmailTemplate; a missing template file also falls back to the default.
func NewEmail(cfg EmailConfig, templatePath string) (*Email, error) {
	text := DefaultEmailTemplate
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read email template: %w", err)
		}
		if err == nil {
			text = string(data)
		}
	}
	tmpl, err := template.New("email").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid email template: %w", err)
	}
	e := &Email{cfg: cfg, tmpl: tmpl}
	e.send = e.dialAndSend
	return e, nil
}

// Notify implements Notifier. Info notifications are not emailed.
func (e *Email) Notify(ctx context.Context, n Notification) error {
	if !e.cfg.Enabled() {
		return nil
	}
	if n.Category != CategorySuccess && n.Category != CategoryFailure {
		return nil
	}

	subject, body, err := e.Render(n)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(e.cfg.Sender); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := msg.To(e.cfg.Receivers...); err != nil {
		return fmt.Errorf("invalid receivers: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := e.send(ctx, msg); err != nil {
		return fmt.Errorf("unable to deliver email: %w", err)
	}
	return nil
}

// Render builds the subject and HTML body for n.
func (e *Email) Render(n Notification) (string, string, error) {
	subject := strings.TrimSpace(fmt.Sprintf("%s %s: %s", e.cfg.SubjectTag, n.Category, n.Title))

	var buf bytes.Buffer
	data := emailData{
		Category:   n.Category,
		Name:       n.Title,
		Lines:      n.Detail,
		Background: categoryBackground[n.Category],
	}
	if err := e.tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render email: %w", err)
	}
	return subject, buf.String(), nil
}

func (e *Email) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	port := e.cfg.Port
	if port == 0 {
		port = 25
	}
	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if e.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(e.cfg.Username),
			mail.WithPassword(e.cfg.Password),
		)
	}
	client, err := mail.NewClient(e.cfg.Server, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}
