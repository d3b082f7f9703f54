package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	"github.com/fjod/go_cart/internal/circuitbreaker"
	"github.com/fjod/go_cart/internal/config"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var ErrNoRecipient = errors.New("order has no receipt address")

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPSender mails purchase receipts through a plain SMTP relay.
type SMTPSender struct {
	from     string
	siteName string
	addr     string
	auth     smtp.Auth
	send     sendFunc
	breaker  *gobreaker.CircuitBreaker[struct{}]
	tmpl     *template.Template
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewSMTPSender(cfg config.SMTP, log *zap.Logger) *SMTPSender {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, cfg.Host)
	}
	return &SMTPSender{
		from:     cfg.From,
		siteName: cfg.SiteName,
		addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		auth:     auth,
		send:     smtp.SendMail,
		breaker:  circuitbreaker.New[struct{}](circuitbreaker.DefaultConfig("smtp"), log),
		tmpl:     template.Must(template.New("receipt").Funcs(templateFuncs).Parse(receiptTemplate)),
		logger:   log,
		tracer:   otel.Tracer("storefront/notify"),
	}
}

// SendReceipt mails the receipt for a paid order to the payer's address.
func (s *SMTPSender) SendReceipt(ctx context.Context, order *domain.Order) error {
	ctx, span := s.tracer.Start(ctx, "smtp.SendReceipt")
	defer span.End()

	to := recipient(order)
	if to == "" {
		return ErrNoRecipient
	}
	span.SetAttributes(attribute.String("order.id", order.ID.String()))

	msg, err := s.render(order, to)
	if err != nil {
		span.RecordError(err)
		return err
	}

	_, err = s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.send(s.addr, s.auth, s.from, []string{to}, msg)
	})
	if err != nil {
		span.RecordError(err)
		logger.Error(ctx, s.logger, "error sending receipt email",
			zap.String("order_id", order.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to send mail: %w", err)
	}

	logger.Info(ctx, s.logger, "receipt email sent", zap.String("order_id", order.ID.String()))
	return nil
}

func recipient(order *domain.Order) string {
	if order.PaymentResult == nil {
		return ""
	}
	return strings.TrimSpace(order.PaymentResult.EmailAddress)
}

func (s *SMTPSender) render(order *domain.Order, to string) ([]byte, error) {
	var body bytes.Buffer
	err := s.tmpl.Execute(&body, receiptView{SiteName: s.siteName, Order: order})
	if err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: Purchase receipt for order %s\r\n", order.ID)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}
