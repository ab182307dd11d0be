package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/ParcelBox/config"
	"github.com/BearBump/ParcelBox/internal/broker/kafka"
	"github.com/BearBump/ParcelBox/internal/broker/messages"
	"github.com/BearBump/ParcelBox/internal/integrations/mailer"
	"github.com/BearBump/ParcelBox/internal/integrations/mailer/fake"
	"github.com/BearBump/ParcelBox/internal/integrations/mailer/smtp"
	"github.com/BearBump/ParcelBox/internal/services/notifier"
	"github.com/pkg/errors"
)

type notifierFactories struct {
	newConsumer func(cfg *config.Config, topic, group string) (c notifier.Consumer, closeFn func(), err error)
	newSender   func(cfg *config.Config) (mailer.Sender, error)
}

func defaultNotifierFactories() notifierFactories {
	return notifierFactories{
		newConsumer: func(cfg *config.Config, topic, group string) (notifier.Consumer, func(), error) {
			brokers := cfg.Kafka.BrokerList()
			if len(brokers) == 0 {
				return nil, nil, errors.New("kafka brokers are not configured")
			}
			c := kafka.NewConsumer(brokers, topic, group)
			return c, func() { _ = c.Close() }, nil
		},
		newSender: func(cfg *config.Config) (mailer.Sender, error) {
			// Без SMTP письма складываются в память: удобно для локального запуска.
			if cfg.Mail.Host == "" {
				slog.Warn("smtp is not configured, using in-memory mailer")
				return fake.New(), nil
			}
			return smtp.New(smtp.Config{
				Host:     cfg.Mail.Host,
				Port:     cfg.Mail.Port,
				Username: cfg.Mail.Username,
				Password: cfg.Mail.Password,
				From:     cfg.Mail.From,
				TLS:      cfg.Mail.TLS,
			})
		},
	}
}

func RunNotifier(ctx context.Context, cfg *config.Config, f notifierFactories) error {
	topic := cfg.Kafka.PackageRegisteredTopicName
	if topic == "" {
		topic = messages.PackageRegisteredTopic
	}
	group := cfg.ParcelBox.NotifierConsumerGroup
	if group == "" {
		group = "parcel-notifier"
	}
	sendTimeout := time.Duration(cfg.ParcelBox.SendTimeoutSeconds) * time.Second
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}

	sender, err := f.newSender(cfg)
	if err != nil {
		return errors.Wrap(err, "mailer")
	}
	consumer, closeConsumer, err := f.newConsumer(cfg, topic, group)
	if err != nil {
		return err
	}
	if closeConsumer != nil {
		defer closeConsumer()
	}

	n := notifier.New(sender).WithSendTimeout(sendTimeout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runNotifierHTTPServer(ctx, notifierHTTPOpts{
			httpAddr: cfg.ParcelBox.NotifierHTTPAddr,
			notifier: n,
			cfg:      cfg,
			topic:    topic,
			group:    group,
		})
	}()

	slog.Info("kafka consumer started", "topic", topic, "group", group)
	runErr := make(chan error, 1)
	go func() { runErr <- n.Run(ctx, consumer) }()

	select {
	case err := <-runErr:
		return err
	case err := <-httpErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
}
