package auth

import (
	"context"

	"go.uber.org/zap"
)

// Mailer - внешний коллаборатор доставки писем. Ядро шлёт письма
// fire-and-forget и не ждёт результата.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer пишет письмо в лог вместо отправки. Используется в разработке
// и тестах; боевая доставка подключается отдельной реализацией.
type LogMailer struct {
	Logger *zap.SugaredLogger
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.Logger.Infow("отправка письма", "to", to, "subject", subject, "body", body)
	return nil
}
