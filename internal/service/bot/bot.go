package bot

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/open-builders/premium-backend/internal/common/errors"
	"github.com/open-builders/premium-backend/internal/common/logger"
	"github.com/open-builders/premium-backend/internal/domain/queue"
	"github.com/open-builders/premium-backend/internal/domain/user"
	"github.com/open-builders/premium-backend/internal/domain/verification"
	"github.com/open-builders/premium-backend/internal/service/telegram"
)

const listLimit = 20

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text, parseMode string) error
}

type Users interface {
	Register(ctx context.Context, id int64, username, name string) (*user.User, error)
	Resolve(ctx context.Context, raw string) (int64, error)
}

type Entitlements interface {
	Grant(ctx context.Context, actor string, userID int64, days int) (*user.Status, error)
	Revoke(ctx context.Context, actor string, userID int64) (bool, error)
	Status(ctx context.Context, userID int64) (*user.Status, error)
}

type Claims interface {
	Submit(ctx context.Context, userID int64, kind verification.Kind, payload string) (*verification.Claim, error)
	Decide(ctx context.Context, actor string, claimID int64, approve bool) (*verification.Claim, error)
	List(ctx context.Context, f verification.Filter) iter.Seq2[verification.Claim, error]
}

type Queue interface {
	Enqueue(ctx context.Context, userID int64) (*queue.Entry, bool, error)
	PeekAll(ctx context.Context) iter.Seq2[queue.Entry, error]
}

// SignalSource supplies the trading signal shown to premium members.
type SignalSource interface {
	Signal(ctx context.Context) (string, error)
}

// Options carries the static texts and admin roster the bot needs.
type Options struct {
	IsAdmin          func(id int64, username string) bool
	DefaultGrantDays int
	PriceText        string
	UPIID            string
	USDTAddress      string
	EVMAddress       string
}

// Bot answers chat commands. Every reply is plain text.
type Bot struct {
	tg      Sender
	users   Users
	ent     Entitlements
	claims  Claims
	queue   Queue
	signals SignalSource
	opts    Options
	logger  zerolog.Logger
}

func New(tg Sender, users Users, ent Entitlements, claims Claims, q Queue, opts Options) *Bot {
	if opts.IsAdmin == nil {
		opts.IsAdmin = func(int64, string) bool { return false }
	}
	if opts.DefaultGrantDays <= 0 {
		opts.DefaultGrantDays = 30
	}
	return &Bot{
		tg:     tg,
		users:  users,
		ent:    ent,
		claims: claims,
		queue:  q,
		opts:   opts,
		logger: logger.Component("bot"),
	}
}

// WithSignals enables /signals for premium members.
func (b *Bot) WithSignals(s SignalSource) *Bot {
	b.signals = s
	return b
}

type request struct {
	from    *telegram.User
	chatID  int64
	command string
	args    []string
}

func (r request) actor() string {
	return "tg:" + strconv.FormatInt(r.from.ID, 10)
}

// HandleUpdate processes one update and sends the reply, if any.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) error {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return nil
	}

	fields := strings.Fields(text)
	command := strings.ToLower(fields[0])
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}
	req := request{from: msg.From, chatID: msg.Chat.ID, command: command, args: fields[1:]}

	reply := b.dispatch(ctx, req)
	if reply == "" || b.tg == nil {
		return nil
	}
	if err := b.tg.SendMessage(ctx, req.chatID, reply, ""); err != nil {
		return apperrors.NewTelegramAPIError("sendMessage", err)
	}
	return nil
}

func (b *Bot) dispatch(ctx context.Context, r request) string {
	switch r.command {
	case "/start":
		return b.start(ctx, r)
	case "/help":
		return b.help(r)
	case "/id":
		return fmt.Sprintf("Your Telegram id is %d. Account registered around %d.",
			r.from.ID, telegram.EstimateRegistration(r.from.ID).Year())
	case "/status":
		return b.status(ctx, r)
	case "/premium":
		return b.premium(ctx, r)
	case "/verify_upi":
		return b.verify(ctx, r, verification.KindUPI)
	case "/verify_usdt", "/verify":
		return b.verify(ctx, r, verification.KindUSDT)
	case "/signals":
		return b.signal(ctx, r)
	}

	if !strings.HasPrefix(r.command, "/admin_") {
		return "Unknown command. Send /help for the list."
	}
	if !b.opts.IsAdmin(r.from.ID, r.from.Username) {
		b.logger.Warn().Int64("telegram_id", r.from.ID).Str("command", r.command).Msg("Admin command from non-admin")
		return "This command is for admins only."
	}
	switch r.command {
	case "/admin_grant":
		return b.adminGrant(ctx, r)
	case "/admin_revoke":
		return b.adminRevoke(ctx, r)
	case "/admin_list_pending":
		return b.adminListPending(ctx, "")
	case "/admin_list_upi":
		return b.adminListPending(ctx, verification.KindUPI)
	case "/admin_list_queue":
		return b.adminListQueue(ctx)
	case "/admin_approve":
		return b.adminDecide(ctx, r, true)
	case "/admin_reject":
		return b.adminDecide(ctx, r, false)
	default:
		return "Unknown admin command. Send /help for the list."
	}
}

func (b *Bot) start(ctx context.Context, r request) string {
	if _, err := b.users.Register(ctx, r.from.ID, r.from.Username, r.from.DisplayName()); err != nil {
		return b.failure(err, r)
	}
	return "Welcome! You are registered.\nSend /premium to see how to get premium, or /help for all commands."
}

func (b *Bot) help(r request) string {
	lines := []string{
		"/status - your premium status",
		"/premium - payment options",
		"/verify_upi <reference> - submit a UPI payment",
		"/verify_usdt <tx hash> - submit a USDT payment",
		"/signals - latest signal (premium)",
		"/id - your Telegram id",
	}
	if b.opts.IsAdmin(r.from.ID, r.from.Username) {
		lines = append(lines,
			"",
			"/admin_grant <user> [days]",
			"/admin_revoke <user>",
			"/admin_list_pending",
			"/admin_list_upi",
			"/admin_list_queue",
			"/admin_approve <claim id> [days]",
			"/admin_reject <claim id>",
		)
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) status(ctx context.Context, r request) string {
	st, err := b.ent.Status(ctx, r.from.ID)
	if errors.Is(err, apperrors.ErrUnknownUser) {
		return "You are not registered yet. Send /start first."
	}
	if err != nil {
		return b.failure(err, r)
	}
	switch {
	case st.Active && st.ExpiresAt == nil:
		return "Premium: active, no expiry."
	case st.Active:
		return fmt.Sprintf("Premium: active until %s.", st.ExpiresAt.String())
	case st.Premium:
		return "Premium: expired. Send /premium to renew."
	default:
		return "Premium: inactive. Send /premium to get it."
	}
}

func (b *Bot) signal(ctx context.Context, r request) string {
	st, err := b.ent.Status(ctx, r.from.ID)
	if errors.Is(err, apperrors.ErrUnknownUser) {
		return "You are not registered yet. Send /start first."
	}
	if err != nil {
		return b.failure(err, r)
	}
	if !st.Active {
		return "Premium required. Send /premium to upgrade."
	}
	if b.signals == nil {
		return "Signals are not available right now."
	}
	text, err := b.signals.Signal(ctx)
	if err != nil {
		b.logger.Error().Err(err).Int64("telegram_id", r.from.ID).Msg("Signal source failed")
		return "Signals are not available right now."
	}
	return text
}

func (b *Bot) premium(ctx context.Context, r request) string {
	if _, err := b.users.Register(ctx, r.from.ID, r.from.Username, r.from.DisplayName()); err != nil {
		return b.failure(err, r)
	}
	if _, _, err := b.queue.Enqueue(ctx, r.from.ID); err != nil {
		return b.failure(err, r)
	}

	var sb strings.Builder
	if b.opts.PriceText != "" {
		sb.WriteString(b.opts.PriceText + "\n\n")
	}
	if b.opts.UPIID != "" {
		fmt.Fprintf(&sb, "UPI: %s\nThen send /verify_upi <reference>\n\n", b.opts.UPIID)
	}
	if b.opts.USDTAddress != "" {
		fmt.Fprintf(&sb, "USDT (TRC20): %s\n", b.opts.USDTAddress)
	}
	if b.opts.EVMAddress != "" {
		fmt.Fprintf(&sb, "USDT (EVM): %s\n", b.opts.EVMAddress)
	}
	if b.opts.USDTAddress != "" || b.opts.EVMAddress != "" {
		sb.WriteString("Then send /verify_usdt <tx hash>\n\n")
	}
	sb.WriteString("You are in the premium queue. We will confirm as soon as your payment is verified.")
	return sb.String()
}

func (b *Bot) verify(ctx context.Context, r request, kind verification.Kind) string {
	if len(r.args) == 0 {
		return fmt.Sprintf("Usage: %s <reference>", r.command)
	}
	c, err := b.claims.Submit(ctx, r.from.ID, kind, strings.Join(r.args, " "))
	if err != nil {
		return b.failure(err, r)
	}
	return fmt.Sprintf("Thanks! Verification #%d is pending review.", c.ID)
}

func (b *Bot) adminGrant(ctx context.Context, r request) string {
	if len(r.args) == 0 {
		return "Usage: /admin_grant <user> [days]"
	}
	days, ok := b.parseDays(r.args[1:])
	if !ok {
		return "Days must be a positive number."
	}
	id, err := b.users.Resolve(ctx, r.args[0])
	if err != nil {
		return b.failure(err, r)
	}
	st, err := b.ent.Grant(ctx, r.actor(), id, days)
	if err != nil {
		return b.failure(err, r)
	}
	return fmt.Sprintf("Granted %d day(s) to %d. %s", days, id, expiryText(st))
}

func (b *Bot) adminRevoke(ctx context.Context, r request) string {
	if len(r.args) == 0 {
		return "Usage: /admin_revoke <user>"
	}
	id, err := b.users.Resolve(ctx, r.args[0])
	if err != nil {
		return b.failure(err, r)
	}
	changed, err := b.ent.Revoke(ctx, r.actor(), id)
	if err != nil {
		return b.failure(err, r)
	}
	if !changed {
		return fmt.Sprintf("User %d had no premium.", id)
	}
	return fmt.Sprintf("Revoked premium for %d.", id)
}

func (b *Bot) adminListPending(ctx context.Context, kind verification.Kind) string {
	var lines []string
	n := 0
	for c, err := range b.claims.List(ctx, verification.Filter{Status: verification.StatusPending, Kind: kind}) {
		if err != nil {
			return b.failure(err, request{})
		}
		n++
		if n > listLimit {
			continue
		}
		lines = append(lines, fmt.Sprintf("#%d %s user %d: %s", c.ID, strings.ToUpper(string(c.Kind)), c.TelegramID, c.Payload))
	}
	if n == 0 && kind == verification.KindUPI {
		return "No pending UPI verifications."
	}
	if n == 0 {
		return "No pending verifications."
	}
	if n > listLimit {
		lines = append(lines, fmt.Sprintf("...and %d more", n-listLimit))
	}
	return strings.Join(lines, "\n")
}

func (b *Bot) adminListQueue(ctx context.Context) string {
	var lines []string
	n := 0
	for e, err := range b.queue.PeekAll(ctx) {
		if err != nil {
			return b.failure(err, request{})
		}
		n++
		if n > listLimit {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. user %d since %s", n, e.TelegramID, e.EnqueuedAt.UTC().Format(time.DateTime)))
	}
	if n == 0 {
		return "The premium queue is empty."
	}
	if n > listLimit {
		lines = append(lines, fmt.Sprintf("...and %d more", n-listLimit))
	}
	return strings.Join(lines, "\n")
}

// adminDecide approves or rejects a claim; approval grants days (default
// duration unless given) as an explicit second step.
func (b *Bot) adminDecide(ctx context.Context, r request, approve bool) string {
	if len(r.args) == 0 {
		return fmt.Sprintf("Usage: %s <claim id>", r.command)
	}
	claimID, err := strconv.ParseInt(strings.TrimPrefix(r.args[0], "#"), 10, 64)
	if err != nil || claimID <= 0 {
		return "Claim id must be a number."
	}
	days, ok := b.parseDays(r.args[1:])
	if !ok {
		return "Days must be a positive number."
	}

	c, err := b.claims.Decide(ctx, r.actor(), claimID, approve)
	if err != nil {
		return b.failure(err, r)
	}
	if !approve {
		return fmt.Sprintf("Rejected claim #%d.", c.ID)
	}
	st, err := b.ent.Grant(ctx, r.actor(), c.TelegramID, days)
	if err != nil {
		return fmt.Sprintf("Approved claim #%d, but the grant failed: %s", c.ID, b.failure(err, r))
	}
	return fmt.Sprintf("Approved claim #%d and granted %d day(s) to %d. %s", c.ID, days, c.TelegramID, expiryText(st))
}

func (b *Bot) parseDays(args []string) (int, bool) {
	if len(args) == 0 {
		return b.opts.DefaultGrantDays, true
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days <= 0 {
		return 0, false
	}
	return days, true
}

func expiryText(st *user.Status) string {
	if st.ExpiresAt == nil {
		return "No expiry."
	}
	return "Expires " + st.ExpiresAt.String() + "."
}

// failure turns an error into a chat reply. Infrastructure details stay in the log.
func (b *Bot) failure(err error, r request) string {
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.IsInternal() {
		ev := b.logger.Error().Err(err).Str("command", r.command)
		if r.from != nil {
			ev = ev.Int64("telegram_id", r.from.ID)
		}
		ev.Msg("Bot command failed")
		return "Something went wrong, please try again later."
	}
	switch {
	case errors.Is(err, apperrors.ErrUnknownUser):
		return "User not found. They need to /start the bot first."
	case errors.Is(err, apperrors.ErrClaimNotPending):
		return "That claim was already decided."
	default:
		return appErr.Message
	}
}
