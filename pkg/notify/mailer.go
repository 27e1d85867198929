package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/wneessen/go-mail"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// Sender delivers built messages; *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

const substitutionBody = `Hello {{.SubstituteName}},

You have been assigned to cover {{.ClassName}} on {{.Day}}, period {{.Period}},
for {{.AbsentTeacherName}}.

Run reference: {{.RunID}}
`

var substitutionTemplate = template.Must(template.New("substitution").Parse(substitutionBody))

// MailConfig describes the SMTP server.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewMailClient builds an SMTPS client with plain auth.
func NewMailClient(cfg MailConfig) (*mail.Client, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port), mail.WithSSL()}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}
	return client, nil
}

// Mailer turns notification envelopes into e-mails.
type Mailer struct {
	sender Sender
	from   string
}

// NewMailer constructs a mailer sending from the given address.
func NewMailer(sender Sender, from string) *Mailer {
	return &Mailer{sender: sender, from: from}
}

// Build renders the message for an envelope.
func (m *Mailer) Build(env Envelope) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(env.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}

	switch env.Type {
	case models.NotificationSubstitutionAssigned:
		var notice models.SubstitutionNotice
		if err := json.Unmarshal(env.Data, &notice); err != nil {
			return nil, fmt.Errorf("decode substitution notice: %w", err)
		}
		msg.Subject(fmt.Sprintf("Cover: %s %s period %s", notice.ClassName, notice.Day, notice.Period))
		if err := msg.SetBodyTextTemplate(substitutionTemplate, notice); err != nil {
			return nil, fmt.Errorf("render body: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported notification type %q", env.Type)
	}
	return msg, nil
}

// Handle builds and sends the e-mail for env.
func (m *Mailer) Handle(ctx context.Context, env Envelope) error {
	msg, err := m.Build(env)
	if err != nil {
		return err
	}
	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
