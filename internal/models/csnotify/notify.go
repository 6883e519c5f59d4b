package csnotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cantostudio/internal/models/csconfig"
	"cantostudio/internal/models/csmarkdown"

	"github.com/resendlabs/resend-go"
	"github.com/rs/zerolog/log"
)

// DeliverTimeout durée maximale d'un envoi, la requête HTTP attend au plus ce délai
var DeliverTimeout = 5 * time.Second

// Message notification pour le studio, corps écrit en Markdown
type Message struct {
	Subject  string
	Markdown string
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Noop utilisé quand notify.enable est faux
type Noop struct{}

func (Noop) Notify(ctx context.Context, msg Message) error { return nil }

// ResendNotifier envoie les notifications par l'API Resend
type ResendNotifier struct {
	send   func(*resend.SendEmailRequest) error
	from   string
	to     []string
	prefix string
	md     *csmarkdown.Renderer
}

// New retourne Noop si les notifications sont désactivées
func New(conf csconfig.NotifyConfig, studioName string) Notifier {
	if !conf.Enable {
		return Noop{}
	}
	client := resend.NewClient(conf.ApiKey)
	return newResendNotifier(conf, studioName, func(req *resend.SendEmailRequest) error {
		_, err := client.Emails.Send(req)
		return err
	})
}

func newResendNotifier(conf csconfig.NotifyConfig, studioName string, send func(*resend.SendEmailRequest) error) *ResendNotifier {
	from := conf.From
	if from == "" {
		from = "onboarding@resend.dev"
	}
	if studioName != "" && !strings.Contains(from, "<") {
		from = fmt.Sprintf("%s <%s>", studioName, from)
	}

	var to []string
	for _, addr := range strings.Split(conf.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}

	prefix := ""
	if studioName != "" {
		prefix = "[" + studioName + "] "
	}

	return &ResendNotifier{
		send:   send,
		from:   from,
		to:     to,
		prefix: prefix,
		md:     csmarkdown.New(),
	}
}

func (n *ResendNotifier) Notify(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := &resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: n.prefix + msg.Subject,
		Html:    string(n.md.HTML(msg.Markdown)),
		Text:    n.md.Text(msg.Markdown),
	}
	// le client Resend n'accepte pas de contexte
	done := make(chan error, 1)
	go func() { done <- n.send(req) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("échec envoi notification via Resend: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("envoi notification interrompu: %w", ctx.Err())
	}
}

// Deliver envoie sans jamais échouer, une erreur est seulement journalisée.
// L'envoi est borné par DeliverTimeout et n'est pas annulé avec la requête.
func Deliver(ctx context.Context, n Notifier, msg Message) {
	if n == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DeliverTimeout)
	defer cancel()
	if err := n.Notify(ctx, msg); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("notification non envoyée")
	}
}
