package discord

import (
	"context"
	"testing"

	"github.com/MarkoPoloResearchLab/coinbot/internal/command"
	"github.com/MarkoPoloResearchLab/coinbot/pkg/economy"
	"github.com/bwmarrin/discordgo"
)

const (
	guildIDValue   = "guild-1"
	roleIDValue    = "role-admin"
	channelIDValue = "chan-1"
)

type silentNotifier struct{}

func (silentNotifier) SendPublicReply(context.Context, command.Inbound, string) error { return nil }
func (silentNotifier) SendPrivateMessage(context.Context, string, string) error       { return nil }

func mustGateway(test *testing.T) *Gateway {
	test.Helper()
	service, err := economy.NewService(economy.NewSnapshot())
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	router, err := command.NewRouter(command.Config{Service: service, Notifier: silentNotifier{}})
	if err != nil {
		test.Fatalf("new router: %v", err)
	}
	gateway, err := New(Config{
		Token:       "test-token",
		GuildID:     guildIDValue,
		AdminRoleID: roleIDValue,
		Router:      router,
	})
	if err != nil {
		test.Fatalf("new gateway: %v", err)
	}
	return gateway
}

func guildMessage(authorID string, content string, roles ...string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg-1",
		GuildID:   guildIDValue,
		ChannelID: channelIDValue,
		Content:   content,
		Author:    &discordgo.User{ID: authorID},
		Member:    &discordgo.Member{Roles: roles},
	}}
}

func receiveInbound(test *testing.T, gateway *Gateway) command.Inbound {
	test.Helper()
	select {
	case message := <-gateway.inbound:
		return message
	default:
		test.Fatalf("expected a queued message")
		return command.Inbound{}
	}
}

func TestMessageCreateQueuesInbound(test *testing.T) {
	test.Parallel()
	gateway := mustGateway(test)

	gateway.onMessageCreate(nil, guildMessage("user-1", "!balance"))

	message := receiveInbound(test, gateway)
	if message.SenderID != "user-1" || message.Text != "!balance" || message.IsAdmin {
		test.Fatalf("unexpected inbound %+v", message)
	}
}

func TestMessageCreateFlagsAdminRole(test *testing.T) {
	test.Parallel()
	gateway := mustGateway(test)

	gateway.onMessageCreate(nil, guildMessage("user-1", "!addbalance", "other-role", roleIDValue))

	if message := receiveInbound(test, gateway); !message.IsAdmin {
		test.Fatalf("expected admin flag for role holder, got %+v", message)
	}
}

func TestMessageCreateIgnoresBots(test *testing.T) {
	test.Parallel()
	gateway := mustGateway(test)

	event := guildMessage("bot-1", "!balance")
	event.Author.Bot = true
	gateway.onMessageCreate(nil, event)

	select {
	case message := <-gateway.inbound:
		test.Fatalf("expected no queued message, got %+v", message)
	default:
	}
}

func TestMessageCreateIgnoresForeignGuilds(test *testing.T) {
	test.Parallel()
	gateway := mustGateway(test)

	event := guildMessage("user-1", "!balance")
	event.GuildID = "another-guild"
	gateway.onMessageCreate(nil, event)

	select {
	case message := <-gateway.inbound:
		test.Fatalf("expected no queued message, got %+v", message)
	default:
	}
}

func TestDirectMessagesAreNeverAdmin(test *testing.T) {
	test.Parallel()
	gateway := mustGateway(test)

	event := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg-2",
		ChannelID: "dm-1",
		Content:   "!addbalance",
		Author:    &discordgo.User{ID: "user-1"},
	}}
	gateway.onMessageCreate(nil, event)

	if message := receiveInbound(test, gateway); message.IsAdmin {
		test.Fatalf("expected no admin flag in DMs, got %+v", message)
	}
}

func TestMessageAfterCloseIsDropped(test *testing.T) {
	test.Parallel()
	gateway := mustGateway(test)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go gateway.dispatchLoop(ctx)

	if err := gateway.Close(); err != nil {
		test.Fatalf("close: %v", err)
	}
	// Handler goroutines can still be in flight while the session tears
	// down; a late event must be discarded without panicking.
	gateway.onMessageCreate(nil, guildMessage("user-1", "!balance"))
}

func TestMentionsMappedToUserIDs(test *testing.T) {
	test.Parallel()
	gateway := mustGateway(test)

	event := guildMessage("user-1", "!addbalance @x 5")
	event.Mentions = []*discordgo.User{{ID: "user-2"}, {ID: "user-3"}}
	gateway.onMessageCreate(nil, event)

	message := receiveInbound(test, gateway)
	if len(message.Mentions) != 2 || message.Mentions[0] != "user-2" {
		test.Fatalf("unexpected mentions %v", message.Mentions)
	}
}
