package bot

import (
	"fmt"
	"strings"

	"caseledger/internal/core"
)

const timeLayout = "2006-01-02 15:04:05"

// formatMoney renders an amount as "1,234.50", digit groups separated
// by commas the way the summary has always been shown to users.
func formatMoney(m core.Money) string {
	s := m.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// formatROI renders ROI as a percent with two decimals, e.g. "-50.00".
func formatROI(roi float64) string {
	return fmt.Sprintf("%.2f", roi*100)
}

func startText() string {
	return "🎮 <b>Case Battle Tracker</b>\n\n" +
		"Используй всплывающее меню ниже или команды:\n" +
		"• /add 1000\n" +
		"• /withdraw 500\n" +
		"• /balance\n" +
		"• /stats\n" +
		"• /history\n" +
		"• /export\n" +
		"• /reset"
}

func recordedText(kind core.TxKind, amount core.Money, sum core.Summary) string {
	action := "Пополнение"
	if kind == core.Withdraw {
		action = "Вывод"
	}
	return fmt.Sprintf("✅ %s: <code>%s</code> ₽\n💼 Баланс: <code>%s</code> ₽",
		action, formatMoney(amount), formatMoney(sum.Balance))
}

func balanceText(sum core.Summary) string {
	return fmt.Sprintf("💼 Баланс: <code>%s</code> ₽\n📈 ROI: <code>%s%%</code>",
		formatMoney(sum.Balance), formatROI(sum.ROI))
}

func statsText(sum core.Summary) string {
	pnl := core.Money{Cents: sum.Withdrawn.Cents - sum.Deposited.Cents}
	verdict := "🎉 Прибыль"
	if pnl.Cents < 0 {
		verdict = "💔 Убыток"
		pnl.Cents = -pnl.Cents
	}
	return "📊 <b>Статистика</b>\n\n" +
		fmt.Sprintf("💰 Ввод: <code>%s</code> ₽\n", formatMoney(sum.Deposited)) +
		fmt.Sprintf("💸 Вывод: <code>%s</code> ₽\n", formatMoney(sum.Withdrawn)) +
		fmt.Sprintf("💼 Итого (баланс): <code>%s</code> ₽\n", formatMoney(sum.Balance)) +
		fmt.Sprintf("📈 ROI: <code>%s%%</code>\n", formatROI(sum.ROI)) +
		fmt.Sprintf("%s: <code>%s</code> ₽", verdict, formatMoney(pnl))
}

// historyText shows the newest rows first, at most limit of them.
func historyText(txs []core.Transaction, limit int) string {
	if len(txs) == 0 {
		return "📝 История пуста."
	}
	if len(txs) > limit {
		txs = txs[len(txs)-limit:]
	}

	lines := make([]string, 0, len(txs)+1)
	lines = append(lines, "📝 <b>Последние операции:</b>")
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		title, emoji := "Пополнение", "💰"
		if tx.Kind == core.Withdraw {
			title, emoji = "Вывод", "💸"
		}
		lines = append(lines, fmt.Sprintf("%s %s: <code>%s</code> ₽ - %s",
			emoji, title, formatMoney(tx.Amount), tx.CreatedAt.Format(timeLayout)))
	}
	return strings.Join(lines, "\n")
}
