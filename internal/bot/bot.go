// Package bot is the Telegram front end of the ledger. Every command
// acts on the sender's own rows; one user can never see or touch
// another's ledger.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"caseledger/internal/core"
	"caseledger/internal/service"
)

const (
	menuDeposit  = "💰 Пополнение"
	menuWithdraw = "💸 Вывод"
	menuBalance  = "💼 Баланс"
	menuStats    = "📊 Статистика"
	menuHistory  = "📝 История"
	menuExport   = "📤 Экспорт"
	menuReset    = "🗑 Сброс"

	callbackResetConfirm = "reset_confirm"
	callbackResetCancel  = "reset_cancel"
)

var menuKeyboard = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(menuDeposit),
		tgbotapi.NewKeyboardButton(menuWithdraw),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(menuBalance),
		tgbotapi.NewKeyboardButton(menuStats),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(menuHistory),
		tgbotapi.NewKeyboardButton(menuExport),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(menuReset),
	),
)

type Bot struct {
	api          *tgbotapi.BotAPI
	service      *service.LedgerService
	historyLimit int

	// Users who tapped a deposit/withdraw menu button and owe us an
	// amount as their next message.
	mu       sync.Mutex
	awaiting map[int64]core.TxKind
}

func New(token string, svc *service.LedgerService, historyLimit int) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	slog.Info("Authorized on Telegram", "account", api.Self.UserName)

	return &Bot{
		api:          api,
		service:      svc,
		historyLimit: historyLimit,
		awaiting:     make(map[int64]core.TxKind),
	}, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		reply := tgbotapi.NewMessage(chatID, startText())
		reply.ParseMode = tgbotapi.ModeHTML
		reply.ReplyMarkup = menuKeyboard
		b.send(reply)
	case "add":
		b.recordFromArgs(ctx, chatID, userID, core.Deposit, msg.CommandArguments())
	case "withdraw":
		b.recordFromArgs(ctx, chatID, userID, core.Withdraw, msg.CommandArguments())
	case "balance":
		b.sendBalance(ctx, chatID, userID)
	case "stats":
		b.sendStats(ctx, chatID, userID)
	case "history":
		b.sendHistory(ctx, chatID, userID)
	case "export":
		b.sendExport(ctx, chatID)
	case "reset":
		b.askResetConfirm(chatID)
	default:
		b.send(tgbotapi.NewMessage(chatID, "ℹ️ Используйте /help для списка команд"))
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch text {
	case menuDeposit:
		b.await(userID, core.Deposit)
		reply := tgbotapi.NewMessage(chatID, "Введи сумму пополнения числом.")
		reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
		b.send(reply)
		return
	case menuWithdraw:
		b.await(userID, core.Withdraw)
		reply := tgbotapi.NewMessage(chatID, "Введи сумму вывода числом.")
		reply.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
		b.send(reply)
		return
	case menuBalance:
		b.sendBalance(ctx, chatID, userID)
		return
	case menuStats:
		b.sendStats(ctx, chatID, userID)
		return
	case menuHistory:
		b.sendHistory(ctx, chatID, userID)
		return
	case menuExport:
		b.sendExport(ctx, chatID)
		return
	case menuReset:
		b.askResetConfirm(chatID)
		return
	}

	kind, ok := b.takeAwaited(userID)
	if !ok {
		return
	}

	amount, err := core.ParseAmount(text)
	if err != nil {
		reply := tgbotapi.NewMessage(chatID, "❌ Введи корректное число.")
		reply.ReplyMarkup = menuKeyboard
		b.send(reply)
		return
	}
	b.record(ctx, chatID, userID, kind, amount, menuKeyboard)
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		slog.ErrorContext(ctx, "Failed to answer callback", "error", err)
	}

	text := "❌ Отмена"
	if query.Data == callbackResetConfirm {
		if err := b.service.Reset(ctx, query.From.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to reset user", "user_id", query.From.ID, "error", err)
			text = "⚠️ Не получилось удалить данные, попробуй позже."
		} else {
			text = "✅ Данные удалены"
		}
	}
	b.send(tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text))
}

func (b *Bot) recordFromArgs(ctx context.Context, chatID, userID int64, kind core.TxKind, args string) {
	example := "/add 1000"
	if kind == core.Withdraw {
		example = "/withdraw 500"
	}

	args = strings.TrimSpace(args)
	if args == "" {
		b.sendHTML(chatID, "❌ Укажи сумму: <code>"+example+"</code>")
		return
	}
	amount, err := core.ParseAmount(strings.Fields(args)[0])
	if err != nil {
		b.sendHTML(chatID, "❌ Неверная сумма. Пример: <code>"+example+"</code>")
		return
	}
	b.record(ctx, chatID, userID, kind, amount, nil)
}

func (b *Bot) record(ctx context.Context, chatID, userID int64, kind core.TxKind, amount core.Money, markup interface{}) {
	var sum core.Summary
	var err error
	if kind == core.Deposit {
		sum, err = b.service.RecordDeposit(ctx, userID, amount)
	} else {
		sum, err = b.service.RecordWithdrawal(ctx, userID, amount)
	}
	if err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			b.sendHTML(chatID, "❌ Сумма должна быть положительным числом.")
			return
		}
		slog.ErrorContext(ctx, "Failed to record transaction", "user_id", userID, "kind", kind, "error", err)
		b.sendHTML(chatID, "⚠️ Не получилось записать операцию, попробуй позже.")
		return
	}

	reply := tgbotapi.NewMessage(chatID, recordedText(kind, amount, sum))
	reply.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		reply.ReplyMarkup = markup
	}
	b.send(reply)
}

func (b *Bot) sendBalance(ctx context.Context, chatID, userID int64) {
	sum, err := b.service.Balance(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read balance", "user_id", userID, "error", err)
		b.sendHTML(chatID, "⚠️ Хранилище недоступно, попробуй позже.")
		return
	}
	b.sendHTML(chatID, balanceText(sum))
}

func (b *Bot) sendStats(ctx context.Context, chatID, userID int64) {
	sum, err := b.service.Balance(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read stats", "user_id", userID, "error", err)
		b.sendHTML(chatID, "⚠️ Хранилище недоступно, попробуй позже.")
		return
	}
	b.sendHTML(chatID, statsText(sum))
}

func (b *Bot) sendHistory(ctx context.Context, chatID, userID int64) {
	txs, err := b.service.History(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read history", "user_id", userID, "error", err)
		b.sendHTML(chatID, "⚠️ Хранилище недоступно, попробуй позже.")
		return
	}
	b.sendHTML(chatID, historyText(txs, b.historyLimit))
}

func (b *Bot) sendExport(ctx context.Context, chatID int64) {
	paths, err := b.service.Export(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export ledger", "error", err)
		b.sendHTML(chatID, "⚠️ Не получилось собрать выгрузку, попробуй позже.")
		return
	}

	for _, path := range paths {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
		doc.Caption = "📤 Выгрузка: " + filepath.Base(path)
		if _, err := b.api.Send(doc); err != nil {
			slog.ErrorContext(ctx, "Failed to send export file", "path", path, "error", err)
		}
	}
}

func (b *Bot) askResetConfirm(chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Да, удалить", callbackResetConfirm),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", callbackResetCancel),
		),
	)
	reply := tgbotapi.NewMessage(chatID, "⚠️ Удалить все твои транзакции?")
	reply.ReplyMarkup = keyboard
	b.send(reply)
}

func (b *Bot) await(userID int64, kind core.TxKind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.awaiting[userID] = kind
}

func (b *Bot) takeAwaited(userID int64) (core.TxKind, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kind, ok := b.awaiting[userID]
	if ok {
		delete(b.awaiting, userID)
	}
	return kind, ok
}

func (b *Bot) sendHTML(chatID int64, text string) {
	reply := tgbotapi.NewMessage(chatID, text)
	reply.ParseMode = tgbotapi.ModeHTML
	b.send(reply)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		slog.Error("Failed to send message", "error", err)
	}
}
