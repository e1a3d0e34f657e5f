// Package command maps inbound chat lines onto economy operations. The
// transport delivers messages one at a time, already stripped of bot noise;
// the router owns argument parsing, role gating, and reply formatting.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/coinbot/internal/i18n"
	"github.com/MarkoPoloResearchLab/coinbot/pkg/economy"
	"go.uber.org/zap"
)

const (
	commandBalance      = "balance"
	commandBalanceUser  = "balanceuser"
	commandAddBalance   = "addbalance"
	commandRemoveBal    = "removebalance"
	commandCreateReward = "createreward"
	commandAddReward    = "addreward"
	commandDeleteReward = "deletereward"
	commandRewards      = "rewards"
	commandRewardClaim  = "rewardclaim"
	commandRegister     = "register"
	commandLang         = "lang"
	commandHelp         = "help"

	// DefaultPrefix marks a line as a command.
	DefaultPrefix = "!"

	registrationLinkFormat = "https://timewall.io/users/login?oid=%s&uid=%s"
)

// Inbound is one command line with its sender context, as resolved by the
// gateway: mentions are already mapped to user ids and the admin flag
// reflects role membership at delivery time.
type Inbound struct {
	SenderID  string
	ChannelID string
	MessageID string
	Text      string
	Mentions  []string
	IsAdmin   bool
}

// Notifier delivers replies. Private delivery may fail (closed DMs); the
// router treats that as non-fatal for every command except register.
type Notifier interface {
	SendPublicReply(ctx context.Context, message Inbound, text string) error
	SendPrivateMessage(ctx context.Context, userID string, text string) error
}

// Router dispatches inbound commands against the economy service.
type Router struct {
	service   *economy.Service
	notifier  Notifier
	prefix    string
	partnerID string
	logger    *zap.Logger
}

// Config carries the router's wiring.
type Config struct {
	Service   *economy.Service
	Notifier  Notifier
	Prefix    string
	PartnerID string
	Logger    *zap.Logger
}

// NewRouter wires a Router.
func NewRouter(cfg Config) (*Router, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("economy service is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Router{
		service:   cfg.Service,
		notifier:  cfg.Notifier,
		prefix:    cfg.Prefix,
		partnerID: cfg.PartnerID,
		logger:    cfg.Logger,
	}, nil
}

// Prefix returns the command marker the router expects.
func (router *Router) Prefix() string {
	return router.prefix
}

// Dispatch handles one message. Lines without the prefix are ignored, and so
// are admin commands from senders without the role: they fall through as if
// the command did not exist.
func (router *Router) Dispatch(ctx context.Context, message Inbound) {
	if !strings.HasPrefix(message.Text, router.prefix) {
		return
	}
	fields := strings.Fields(strings.TrimPrefix(message.Text, router.prefix))
	if len(fields) == 0 {
		return
	}
	commandName := strings.ToLower(fields[0])
	args := fields[1:]

	if message.IsAdmin {
		switch commandName {
		case commandAddBalance:
			router.handleAddBalance(ctx, message, args)
			return
		case commandRemoveBal:
			router.handleRemoveBalance(ctx, message)
			return
		case commandCreateReward:
			router.handleCreateReward(ctx, message, args)
			return
		case commandAddReward:
			router.handleAddReward(ctx, message, args)
			return
		case commandDeleteReward:
			router.handleDeleteReward(ctx, message, args)
			return
		case commandBalanceUser:
			router.handleBalanceUser(ctx, message)
			return
		}
	}

	switch commandName {
	case commandBalance:
		router.handleBalance(ctx, message)
	case commandRewards:
		router.handleRewards(ctx, message)
	case commandRewardClaim:
		router.handleRewardClaim(ctx, message, args)
	case commandRegister:
		router.handleRegister(ctx, message)
	case commandLang:
		router.handleLang(ctx, message, args)
	case commandHelp:
		router.handleHelp(ctx, message)
	}
}

func (router *Router) handleBalance(ctx context.Context, message Inbound) {
	sender, err := economy.NewUserID(message.SenderID)
	if err != nil {
		return
	}
	balance := router.service.Balance(sender)
	router.reply(ctx, message, i18n.KeyBalanceSelf, balance)
}

func (router *Router) handleBalanceUser(ctx context.Context, message Inbound) {
	target, ok := router.firstMention(message)
	if !ok {
		router.reply(ctx, message, i18n.KeyUsageBalanceUser, router.prefix)
		return
	}
	balance := router.service.Balance(target)
	router.reply(ctx, message, i18n.KeyBalanceOther, target.String(), balance)
}

func (router *Router) handleAddBalance(ctx context.Context, message Inbound, args []string) {
	target, ok := router.firstMention(message)
	if !ok || len(args) < 2 {
		router.reply(ctx, message, i18n.KeyUsageAddBalance, router.prefix)
		return
	}
	amount, err := parseCoinAmount(args[1])
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageAddBalance, router.prefix)
		return
	}
	updated, err := router.service.Credit(ctx, target, amount)
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageAddBalance, router.prefix)
		return
	}
	router.reply(ctx, message, i18n.KeyBalanceAdded, amount.Int64(), target.String(), updated)
}

func (router *Router) handleRemoveBalance(ctx context.Context, message Inbound) {
	target, ok := router.firstMention(message)
	if !ok {
		router.reply(ctx, message, i18n.KeyUsageRemoveBalance, router.prefix)
		return
	}
	router.service.Reset(ctx, target)
	router.reply(ctx, message, i18n.KeyBalanceRemoved, target.String())
}

func (router *Router) handleCreateReward(ctx context.Context, message Inbound, args []string) {
	if len(args) < 2 {
		router.reply(ctx, message, i18n.KeyUsageCreateReward, router.prefix)
		return
	}
	name, err := economy.NewRewardName(args[0])
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageCreateReward, router.prefix)
		return
	}
	price, err := parseCoinAmount(args[1])
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageCreateReward, router.prefix)
		return
	}
	if err := router.service.CreateReward(ctx, name, price); err != nil {
		router.reply(ctx, message, i18n.KeyRewardExists, name.String())
		return
	}
	router.reply(ctx, message, i18n.KeyRewardCreated, name.String(), price.Int64())
}

func (router *Router) handleAddReward(ctx context.Context, message Inbound, args []string) {
	if len(args) < 2 {
		router.reply(ctx, message, i18n.KeyUsageAddReward, router.prefix)
		return
	}
	name, err := economy.NewRewardName(args[0])
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageAddReward, router.prefix)
		return
	}
	code, err := economy.NewRewardCode(args[1])
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageAddReward, router.prefix)
		return
	}
	stock, err := router.service.AddCode(ctx, name, code)
	if err != nil {
		router.reply(ctx, message, i18n.KeyRewardUnknown, name.String())
		return
	}
	router.reply(ctx, message, i18n.KeyCodeAdded, name.String(), stock)
}

func (router *Router) handleDeleteReward(ctx context.Context, message Inbound, args []string) {
	if len(args) < 1 {
		router.reply(ctx, message, i18n.KeyUsageDeleteReward, router.prefix)
		return
	}
	name, err := economy.NewRewardName(args[0])
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageDeleteReward, router.prefix)
		return
	}
	leftover, err := router.service.DeleteReward(ctx, name)
	if err != nil {
		router.reply(ctx, message, i18n.KeyRewardUnknown, name.String())
		return
	}
	locale := router.service.Language(router.mustSender(message))
	leftoverText := i18n.Sprintf(locale, i18n.KeyLeftoverNone)
	if len(leftover) > 0 {
		leftoverText = strings.Join(leftover, ", ")
	}
	// One-time surfacing of the discarded codes; after this they are gone.
	privateText := i18n.Sprintf(locale, i18n.KeyLeftoverCodes, name.String(), leftoverText)
	if err := router.notifier.SendPrivateMessage(ctx, message.SenderID, privateText); err != nil {
		router.logger.Warn("leftover code delivery failed",
			zap.String("reward", name.String()),
			zap.String("user_id", message.SenderID),
			zap.Error(err))
	}
	router.reply(ctx, message, i18n.KeyRewardDeleted, name.String())
}

func (router *Router) handleRewards(ctx context.Context, message Inbound) {
	summaries := router.service.ListRewards()
	if len(summaries) == 0 {
		router.reply(ctx, message, i18n.KeyRewardsNone)
		return
	}
	locale := router.service.Language(router.mustSender(message))
	lines := make([]string, 0, len(summaries)+1)
	lines = append(lines, i18n.Sprintf(locale, i18n.KeyRewardsHeader))
	for _, summary := range summaries {
		lines = append(lines, i18n.Sprintf(locale, i18n.KeyRewardsLine, summary.Name, summary.Stock, summary.Price))
	}
	router.sendPublic(ctx, message, strings.Join(lines, "\n"))
}

func (router *Router) handleRewardClaim(ctx context.Context, message Inbound, args []string) {
	if len(args) < 2 {
		router.reply(ctx, message, i18n.KeyUsageRewardClaim, router.prefix)
		return
	}
	name, err := economy.NewRewardName(args[0])
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageRewardClaim, router.prefix)
		return
	}
	quantity, err := strconv.Atoi(args[1])
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageRewardClaim, router.prefix)
		return
	}
	sender := router.mustSender(message)
	receipt, err := router.service.Claim(ctx, sender, name, quantity)
	switch {
	case err == nil:
	case isError(err, economy.ErrRewardNotFound):
		router.reply(ctx, message, i18n.KeyRewardUnknown, name.String())
		return
	case isError(err, economy.ErrInvalidQuantity):
		router.reply(ctx, message, i18n.KeyUsageRewardClaim, router.prefix)
		return
	case isError(err, economy.ErrInsufficientStock):
		router.reply(ctx, message, i18n.KeyInsufficientStock, name.String())
		return
	case isError(err, economy.ErrInsufficientFunds):
		price, _ := router.service.RewardPrice(name)
		router.reply(ctx, message, i18n.KeyInsufficientFunds, price*int64(quantity), router.service.Balance(sender))
		return
	default:
		router.logger.Error("claim failed", zap.String("reward", name.String()), zap.Error(err))
		return
	}

	locale := router.service.Language(sender)
	privateText := i18n.Sprintf(locale, i18n.KeyClaimDelivery, len(receipt.Codes), name.String(), strings.Join(receipt.Codes, ", "))
	if err := router.notifier.SendPrivateMessage(ctx, message.SenderID, privateText); err != nil {
		// The claim is already committed; the public reply still reports it.
		router.logger.Warn("claim code delivery failed",
			zap.String("reward", name.String()),
			zap.String("user_id", message.SenderID),
			zap.Error(err))
	}
	router.reply(ctx, message, i18n.KeyClaimOK, receipt.RemainingBalance)
}

func (router *Router) handleRegister(ctx context.Context, message Inbound) {
	locale := router.service.Language(router.mustSender(message))
	link := fmt.Sprintf(registrationLinkFormat, router.partnerID, message.SenderID)
	privateText := i18n.Sprintf(locale, i18n.KeyRegisterDelivery, link)
	if err := router.notifier.SendPrivateMessage(ctx, message.SenderID, privateText); err != nil {
		// Unlike other private sends, an undeliverable link IS the outcome.
		router.reply(ctx, message, i18n.KeyRegisterDMFailed)
		return
	}
	router.reply(ctx, message, i18n.KeyRegisterSent)
}

func (router *Router) handleLang(ctx context.Context, message Inbound, args []string) {
	if len(args) < 1 {
		router.reply(ctx, message, i18n.KeyUsageLang, router.prefix)
		return
	}
	locale, err := economy.ParseLocale(args[0])
	if err != nil {
		router.reply(ctx, message, i18n.KeyUsageLang, router.prefix)
		return
	}
	sender := router.mustSender(message)
	router.service.SetLanguage(ctx, sender, locale)
	// Confirm in the freshly selected language.
	router.sendPublic(ctx, message, i18n.Sprintf(locale, i18n.KeyLangSet, locale.String()))
}

func (router *Router) handleHelp(ctx context.Context, message Inbound) {
	locale := router.service.Language(router.mustSender(message))
	prefix := router.prefix
	sections := []string{
		i18n.Sprintf(locale, i18n.KeyHelpHeader),
		i18n.Sprintf(locale, i18n.KeyHelpPublic, prefix, prefix, prefix, prefix, prefix, prefix),
	}
	if message.IsAdmin {
		sections = append(sections, i18n.Sprintf(locale, i18n.KeyHelpAdmin, prefix, prefix, prefix, prefix, prefix, prefix))
	}
	router.sendPublic(ctx, message, strings.Join(sections, "\n"))
}

func (router *Router) firstMention(message Inbound) (economy.UserID, bool) {
	if len(message.Mentions) == 0 {
		return economy.UserID{}, false
	}
	target, err := economy.NewUserID(message.Mentions[0])
	if err != nil {
		return economy.UserID{}, false
	}
	return target, true
}

// mustSender trusts the gateway: sender ids come from the transport and are
// never empty by the time a message reaches the router.
func (router *Router) mustSender(message Inbound) economy.UserID {
	sender, err := economy.NewUserID(message.SenderID)
	if err != nil {
		return economy.UserID{}
	}
	return sender
}

func (router *Router) reply(ctx context.Context, message Inbound, key i18n.Key, args ...any) {
	locale := router.service.Language(router.mustSender(message))
	router.sendPublic(ctx, message, i18n.Sprintf(locale, key, args...))
}

func (router *Router) sendPublic(ctx context.Context, message Inbound, text string) {
	if err := router.notifier.SendPublicReply(ctx, message, text); err != nil {
		router.logger.Warn("public reply failed", zap.String("channel_id", message.ChannelID), zap.Error(err))
	}
}

func parseCoinAmount(raw string) (economy.CoinAmount, error) {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return economy.NewCoinAmount(value)
}

func isError(err error, target error) bool {
	return errors.Is(err, target)
}
