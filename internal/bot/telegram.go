package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/wagmibets/predictfolio/internal/positions"
)

// Engine is the reconciliation surface the bot reports from
type Engine interface {
	GetPositions(ctx context.Context, accountID string) (*positions.Book, error)
	GetPositionStats(ctx context.Context, accountID string) (*positions.Stats, error)
}

// TelegramBot answers position and PnL queries over Telegram
type TelegramBot struct {
	mu      sync.RWMutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	engine Engine
}

// NewTelegramBot creates the bot. chatID restricts who may query; zero allows
// any chat.
func NewTelegramBot(token string, chatID int64, engine Engine) (*TelegramBot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token not set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &TelegramBot{
		api:    api,
		chatID: chatID,
		stopCh: make(chan struct{}),
		engine: engine,
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")

	return bot, nil
}

// Start begins listening for commands
func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

// Stop stops the bot
func (b *TelegramBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	b.running = false
	close(b.stopCh)
	log.Info().Msg("Telegram bot stopped")
}

func (b *TelegramBot) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.stopCh:
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if b.chatID != 0 && update.Message.Chat.ID != b.chatID {
				continue
			}
			b.handleCommand(update.Message)
		}
	}
}

func (b *TelegramBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := strings.Fields(msg.CommandArguments())

	switch msg.Command() {
	case "positions":
		if len(args) < 1 {
			b.reply(msg.Chat.ID, "Usage: /positions <address>")
			return
		}
		b.reportPositions(ctx, msg.Chat.ID, args[0])
	case "stats":
		if len(args) < 1 {
			b.reply(msg.Chat.ID, "Usage: /stats <address>")
			return
		}
		b.reportStats(ctx, msg.Chat.ID, args[0])
	case "help", "start":
		b.reply(msg.Chat.ID, helpText)
	}
}

const helpText = `📊 *Predictfolio*

/positions <address> - reconciled positions for a wallet
/stats <address> - PnL summary for a wallet`

func (b *TelegramBot) reportPositions(ctx context.Context, chatID int64, address string) {
	book, err := b.engine.GetPositions(ctx, address)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("❌ %v", err))
		return
	}

	if len(book.Active) == 0 && len(book.Previous) == 0 {
		b.reply(chatID, "No positions found for this wallet.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 *Positions* — `%s`\n", shorten(address)))

	if len(book.Active) > 0 {
		sb.WriteString("\n🟢 *Active*\n")
		for _, p := range book.Active {
			sb.WriteString(formatPosition(&p))
		}
	}

	if len(book.Previous) > 0 {
		sb.WriteString("\n⚪ *Previous*\n")
		for _, p := range book.Previous {
			sb.WriteString(formatPosition(&p))
		}
	}

	if book.DroppedMints > 0 {
		sb.WriteString(fmt.Sprintf("\n⚠️ %d holding(s) could not be resolved to a market\n", book.DroppedMints))
	}

	b.sendMarkdown(chatID, sb.String())
}

func (b *TelegramBot) reportStats(ctx context.Context, chatID int64, address string) {
	stats, err := b.engine.GetPositionStats(ctx, address)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("❌ %v", err))
		return
	}

	emoji := "📈"
	if stats.TotalProfitLoss.IsNegative() {
		emoji = "📉"
	}

	msg := fmt.Sprintf(`%s *PnL Summary* — `+"`%s`"+`

Positions: *%d* (%d active)
W/L: *%d/%d* (%s%% win rate)
Total P&L: *$%s*`,
		emoji, shorten(address),
		stats.TotalPositions, stats.ActivePositions,
		stats.WinningPositions, stats.LosingPositions,
		stats.WinRate.StringFixed(1),
		stats.TotalProfitLoss.StringFixed(2),
	)

	b.sendMarkdown(chatID, msg)
}

func formatPosition(p *positions.Position) string {
	title := p.Title
	if title == "" {
		title = p.MarketTicker
	}

	line := fmt.Sprintf("• %s — *%s* × %s",
		title, strings.ToUpper(string(p.Side)), p.CurrentQty.StringFixed(2))

	if p.TotalPnL != nil {
		line += fmt.Sprintf(" (P&L %s)", formatMoney(*p.TotalPnL))
	}

	return line + "\n"
}

func formatMoney(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "+$" + d.StringFixed(2)
}

func shorten(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

func (b *TelegramBot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func (b *TelegramBot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}
