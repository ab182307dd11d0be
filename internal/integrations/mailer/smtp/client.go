package smtp

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/BearBump/ParcelBox/internal/integrations/mailer"
	"github.com/pkg/errors"
	"github.com/wneessen/go-mail"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS: "mandatory" (default), "opportunistic" or "none".
	TLS     string
	Timeout time.Duration
}

type Client struct {
	c    *mail.Client
	from string
}

func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if cfg.From == "" {
		return nil, errors.New("smtp from address is required")
	}

	policy, err := tlsPolicy(cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(policy),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create smtp client")
	}
	return &Client{c: c, from: cfg.From}, nil
}

func tlsPolicy(s string) (mail.TLSPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.NoTLS, errors.Errorf("unknown smtp tls policy %q", s)
	}
}

func (c *Client) Send(ctx context.Context, m mailer.Message) error {
	msg, err := c.build(m)
	if err != nil {
		return err
	}
	if err := c.c.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Wrapf(err, "smtp send to %s", m.To)
	}
	return nil
}

func (c *Client) build(m mailer.Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(c.from); err != nil {
		return nil, errors.Wrap(err, "set from")
	}
	if err := msg.To(m.To); err != nil {
		return nil, errors.Wrap(err, "set to")
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	for _, a := range m.Attachments {
		var fileOpts []mail.FileOption
		if a.ContentType != "" {
			fileOpts = append(fileOpts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := msg.AttachReader(a.Filename, bytes.NewReader(a.Data), fileOpts...); err != nil {
			return nil, errors.Wrapf(err, "attach %s", a.Filename)
		}
	}
	return msg, nil
}
