// Package discord adapts the Discord gateway to the command router. Message
// handlers run on discordgo's event goroutines; the gateway funnels them
// through a single dispatch channel so commands mutate the economy strictly
// in arrival order.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/MarkoPoloResearchLab/coinbot/internal/command"
	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const dispatchQueueSize = 256

// Config carries the gateway's wiring.
type Config struct {
	Token       string
	GuildID     string
	AdminRoleID string
	Router      *command.Router
	Logger      *zap.Logger
}

// Gateway owns the discordgo session and the dispatch loop.
type Gateway struct {
	session     *discordgo.Session
	router      *command.Router
	guildID     string
	adminRoleID string
	logger      *zap.Logger
	inbound     chan command.Inbound
	done        chan struct{}

	// closeMu fences onMessageCreate against Close: discordgo may still be
	// draining handler goroutines when the session closes, and a send on the
	// torn-down queue must become a drop, not a panic.
	closeMu sync.RWMutex
	closed  bool
}

// New builds a Gateway. Open must be called to connect.
func New(cfg Config) (*Gateway, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	gateway := &Gateway{
		session:     session,
		router:      cfg.Router,
		guildID:     cfg.GuildID,
		adminRoleID: cfg.AdminRoleID,
		logger:      cfg.Logger,
		inbound:     make(chan command.Inbound, dispatchQueueSize),
		done:        make(chan struct{}),
	}
	session.AddHandler(gateway.onReady)
	session.AddHandler(gateway.onMessageCreate)
	return gateway, nil
}

// SetRouter wires the command router. The session needs to exist before the
// router's notifier can be built, so wiring happens after New and before Open.
func (gateway *Gateway) SetRouter(router *command.Router) {
	gateway.router = router
}

// Open connects to the gateway and starts the dispatch loop. The loop runs
// until the context is cancelled.
func (gateway *Gateway) Open(ctx context.Context) error {
	if gateway.router == nil {
		return fmt.Errorf("command router is required before open")
	}
	if err := gateway.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	go gateway.dispatchLoop(ctx)
	return nil
}

// Close stops event delivery first, then drains the dispatch loop. Closing
// the session before the queue keeps a message arriving mid-shutdown from
// hitting a closed channel.
func (gateway *Gateway) Close() error {
	err := gateway.session.Close()

	gateway.closeMu.Lock()
	gateway.closed = true
	gateway.closeMu.Unlock()

	close(gateway.inbound)
	<-gateway.done
	return err
}

func (gateway *Gateway) dispatchLoop(ctx context.Context) {
	defer close(gateway.done)
	for message := range gateway.inbound {
		gateway.router.Dispatch(ctx, message)
	}
}

func (gateway *Gateway) onReady(_ *discordgo.Session, event *discordgo.Ready) {
	gateway.logger.Info("discord connected",
		zap.String("username", event.User.Username),
		zap.String("user_id", event.User.ID))
}

func (gateway *Gateway) onMessageCreate(session *discordgo.Session, event *discordgo.MessageCreate) {
	if event.Author == nil || event.Author.Bot {
		return
	}
	if gateway.guildID != "" && event.GuildID != "" && event.GuildID != gateway.guildID {
		return
	}
	mentions := make([]string, 0, len(event.Mentions))
	for _, mention := range event.Mentions {
		mentions = append(mentions, mention.ID)
	}
	message := command.Inbound{
		SenderID:  event.Author.ID,
		ChannelID: event.ChannelID,
		MessageID: event.ID,
		Text:      event.Content,
		Mentions:  mentions,
		IsAdmin:   gateway.isAdmin(event),
	}

	gateway.closeMu.RLock()
	defer gateway.closeMu.RUnlock()
	if gateway.closed {
		return
	}
	select {
	case gateway.inbound <- message:
	default:
		// A full queue means the dispatch loop is wedged; dropping is better
		// than blocking the gateway event pump.
		gateway.logger.Warn("dispatch queue full, dropping message",
			zap.String("channel_id", event.ChannelID))
	}
}

// isAdmin checks role membership on the member payload that rides along with
// guild messages. DMs carry no member and are never admin.
func (gateway *Gateway) isAdmin(event *discordgo.MessageCreate) bool {
	if gateway.adminRoleID == "" || event.Member == nil {
		return false
	}
	for _, roleID := range event.Member.Roles {
		if roleID == gateway.adminRoleID {
			return true
		}
	}
	return false
}

// Notifier adapts the session to the router's reply interface.
type Notifier struct {
	session *discordgo.Session
	logger  *zap.Logger
}

// NewNotifier wraps a session for reply delivery.
func NewNotifier(session *discordgo.Session, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{session: session, logger: logger}
}

// Session exposes the underlying discordgo session.
func (gateway *Gateway) Session() *discordgo.Session {
	return gateway.session
}

// SendPublicReply posts the text as a reply in the message's channel.
func (notifier *Notifier) SendPublicReply(_ context.Context, message command.Inbound, text string) error {
	_, err := notifier.session.ChannelMessageSendReply(message.ChannelID, text, &discordgo.MessageReference{
		MessageID: message.MessageID,
		ChannelID: message.ChannelID,
	})
	if err != nil {
		return fmt.Errorf("channel reply: %w", err)
	}
	return nil
}

// SendPrivateMessage opens (or reuses) the DM channel and posts the text.
func (notifier *Notifier) SendPrivateMessage(_ context.Context, userID string, text string) error {
	channel, err := notifier.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := notifier.session.ChannelMessageSend(channel.ID, text); err != nil {
		return fmt.Errorf("dm send: %w", err)
	}
	return nil
}
