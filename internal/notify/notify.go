// Package notify delivers the finished day plan as a Telegram message.
package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dayflow/internal/service"
)

// TelegramNotifier sends the daily plan summary to a configured chat.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

// SendDayPlan formats and sends the plan. Implements service.Notifier.
func (n *TelegramNotifier) SendDayPlan(ctx context.Context, date time.Time, plan service.DayPlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatDayPlan(date, plan))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("send day plan: %w", err)
	}
	return nil
}

// FormatDayPlan builds the HTML summary message for one scheduled day.
func FormatDayPlan(date time.Time, plan service.DayPlan) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>Today's plan</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", date.Format("Mon 02 Jan 2006")))

	if len(plan.Placed) == 0 {
		builder.WriteString("— nothing scheduled\n")
	}
	for _, item := range plan.Placed {
		icon := "🟢"
		switch {
		case item.IsAppointment:
			icon = "📌"
		case item.IsRoutine:
			icon = "♻️"
		}
		builder.WriteString(fmt.Sprintf("%s %s–%s %s\n",
			icon,
			item.StartTime.Format("15:04"),
			item.EndTime.Format("15:04"),
			html.EscapeString(strings.TrimSpace(item.Title))))
	}

	if len(plan.Unplaced) > 0 {
		builder.WriteString("\n⚠️ <b>Couldn't fit</b>\n")
		for _, u := range plan.Unplaced {
			builder.WriteString(fmt.Sprintf("• %s — <i>%s</i>\n",
				html.EscapeString(strings.TrimSpace(u.Instance.Title)),
				html.EscapeString(u.Reason)))
		}
	}

	return strings.TrimSpace(builder.String())
}
