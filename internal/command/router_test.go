package command

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MarkoPoloResearchLab/coinbot/pkg/economy"
)

const (
	adminIDValue  = "admin-1"
	memberIDValue = "member-1"
	targetIDValue = "member-2"
	partnerID     = "partner-7"
)

type recordingNotifier struct {
	public       []string
	private      map[string][]string
	privateError error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{private: map[string][]string{}}
}

func (notifier *recordingNotifier) SendPublicReply(_ context.Context, _ Inbound, text string) error {
	notifier.public = append(notifier.public, text)
	return nil
}

func (notifier *recordingNotifier) SendPrivateMessage(_ context.Context, userID string, text string) error {
	if notifier.privateError != nil {
		return notifier.privateError
	}
	notifier.private[userID] = append(notifier.private[userID], text)
	return nil
}

func mustRouter(test *testing.T, notifier Notifier) (*Router, *economy.Service) {
	test.Helper()
	service, err := economy.NewService(economy.NewSnapshot())
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	router, err := NewRouter(Config{
		Service:   service,
		Notifier:  notifier,
		PartnerID: partnerID,
	})
	if err != nil {
		test.Fatalf("new router: %v", err)
	}
	return router, service
}

func adminMessage(text string, mentions ...string) Inbound {
	return Inbound{SenderID: adminIDValue, ChannelID: "general", Text: text, Mentions: mentions, IsAdmin: true}
}

func memberMessage(text string, mentions ...string) Inbound {
	return Inbound{SenderID: memberIDValue, ChannelID: "general", Text: text, Mentions: mentions}
}

func mustSeedReward(test *testing.T, service *economy.Service, name string, price int64, codes ...string) {
	test.Helper()
	rewardName, err := economy.NewRewardName(name)
	if err != nil {
		test.Fatalf("reward name: %v", err)
	}
	amount, err := economy.NewCoinAmount(price)
	if err != nil {
		test.Fatalf("coin amount: %v", err)
	}
	if err := service.CreateReward(context.Background(), rewardName, amount); err != nil {
		test.Fatalf("create reward: %v", err)
	}
	for _, code := range codes {
		rewardCode, err := economy.NewRewardCode(code)
		if err != nil {
			test.Fatalf("reward code: %v", err)
		}
		if _, err := service.AddCode(context.Background(), rewardName, rewardCode); err != nil {
			test.Fatalf("add code: %v", err)
		}
	}
}

func mustSeedBalance(test *testing.T, service *economy.Service, userID string, amount int64) {
	test.Helper()
	id, err := economy.NewUserID(userID)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	coins, err := economy.NewCoinAmount(amount)
	if err != nil {
		test.Fatalf("coin amount: %v", err)
	}
	if _, err := service.Credit(context.Background(), id, coins); err != nil {
		test.Fatalf("credit: %v", err)
	}
}

func lastPublic(test *testing.T, notifier *recordingNotifier) string {
	test.Helper()
	if len(notifier.public) == 0 {
		test.Fatalf("expected a public reply")
	}
	return notifier.public[len(notifier.public)-1]
}

func TestDispatchIgnoresUnprefixedText(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, _ := mustRouter(test, notifier)

	router.Dispatch(context.Background(), memberMessage("balance"))
	router.Dispatch(context.Background(), memberMessage("hello everyone"))

	if len(notifier.public) != 0 {
		test.Fatalf("expected no replies, got %v", notifier.public)
	}
}

func TestDispatchIgnoresUnknownCommand(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, _ := mustRouter(test, notifier)

	router.Dispatch(context.Background(), memberMessage("!doesnotexist"))

	if len(notifier.public) != 0 {
		test.Fatalf("expected no replies, got %v", notifier.public)
	}
}

func TestAdminCommandsSilentlyIgnoredForMembers(test *testing.T) {
	test.Parallel()
	adminOnlyCommands := []string{
		"!addbalance @x 10",
		"!removebalance @x",
		"!balanceuser @x",
		"!createreward VIP 5",
		"!addreward VIP CODE",
		"!deletereward VIP",
	}
	for _, line := range adminOnlyCommands {
		line := line
		test.Run(line, func(test *testing.T) {
			test.Parallel()
			notifier := newRecordingNotifier()
			router, _ := mustRouter(test, notifier)

			router.Dispatch(context.Background(), memberMessage(line, targetIDValue))

			if len(notifier.public) != 0 || len(notifier.private) != 0 {
				test.Fatalf("expected silence for %q, got %v / %v", line, notifier.public, notifier.private)
			}
		})
	}
}

func TestBalanceRepliesWithSenderBalance(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedBalance(test, service, memberIDValue, 25)

	router.Dispatch(context.Background(), memberMessage("!balance"))

	if reply := lastPublic(test, notifier); !strings.Contains(reply, "25") {
		test.Fatalf("expected balance in reply, got %q", reply)
	}
}

func TestAddBalanceCreditsMentionedUser(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)

	router.Dispatch(context.Background(), adminMessage("!addbalance @member 40", targetIDValue))

	target, err := economy.NewUserID(targetIDValue)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	if balance := service.Balance(target); balance != 40 {
		test.Fatalf("expected balance 40, got %d", balance)
	}
	if reply := lastPublic(test, notifier); !strings.Contains(reply, "40") {
		test.Fatalf("expected amount in reply, got %q", reply)
	}
}

func TestAddBalanceWithoutArgumentsRepliesUsage(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, _ := mustRouter(test, notifier)

	router.Dispatch(context.Background(), adminMessage("!addbalance"))

	if reply := lastPublic(test, notifier); !strings.Contains(reply, "addbalance") {
		test.Fatalf("expected usage hint, got %q", reply)
	}
}

func TestRemoveBalanceResetsMentionedUser(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedBalance(test, service, targetIDValue, 15)

	router.Dispatch(context.Background(), adminMessage("!removebalance @member", targetIDValue))

	target, err := economy.NewUserID(targetIDValue)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	if balance := service.Balance(target); balance != 0 {
		test.Fatalf("expected balance reset, got %d", balance)
	}
}

func TestBalanceUserReportsMentionedUser(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedBalance(test, service, targetIDValue, 7)

	router.Dispatch(context.Background(), adminMessage("!balanceuser @member", targetIDValue))

	reply := lastPublic(test, notifier)
	if !strings.Contains(reply, targetIDValue) || !strings.Contains(reply, "7") {
		test.Fatalf("expected target and balance in reply, got %q", reply)
	}
}

func TestCreateRewardDuplicateReported(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedReward(test, service, "VIP", 10)

	router.Dispatch(context.Background(), adminMessage("!createreward VIP 99"))

	if reply := lastPublic(test, notifier); !strings.Contains(reply, "VIP") {
		test.Fatalf("expected duplicate notice, got %q", reply)
	}
	price, ok := service.RewardPrice(mustName(test, "VIP"))
	if !ok || price != 10 {
		test.Fatalf("expected original price preserved, got %d", price)
	}
}

func TestAddRewardUnknownRewardReported(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, _ := mustRouter(test, notifier)

	router.Dispatch(context.Background(), adminMessage("!addreward missing CODE"))

	if reply := lastPublic(test, notifier); !strings.Contains(reply, "missing") {
		test.Fatalf("expected unknown reward notice, got %q", reply)
	}
}

func TestDeleteRewardSendsLeftoverCodesPrivately(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedReward(test, service, "VIP", 10, "left-1", "left-2")

	router.Dispatch(context.Background(), adminMessage("!deletereward VIP"))

	privates := notifier.private[adminIDValue]
	if len(privates) != 1 {
		test.Fatalf("expected one private message, got %v", privates)
	}
	if !strings.Contains(privates[0], "left-1") || !strings.Contains(privates[0], "left-2") {
		test.Fatalf("expected leftover codes in private message, got %q", privates[0])
	}
}

func TestRewardsListsSortedInventory(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedReward(test, service, "zeta", 3, "z-1")
	mustSeedReward(test, service, "alpha", 5)

	router.Dispatch(context.Background(), memberMessage("!rewards"))

	reply := lastPublic(test, notifier)
	alphaIndex := strings.Index(reply, "alpha")
	zetaIndex := strings.Index(reply, "zeta")
	if alphaIndex < 0 || zetaIndex < 0 || alphaIndex > zetaIndex {
		test.Fatalf("expected alphabetical listing, got %q", reply)
	}
}

func TestRewardsEmptyCatalogReported(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, _ := mustRouter(test, notifier)

	router.Dispatch(context.Background(), memberMessage("!rewards"))

	if len(notifier.public) != 1 {
		test.Fatalf("expected one reply, got %v", notifier.public)
	}
}

func TestRewardClaimDeliversCodesPrivately(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedReward(test, service, "VIP", 10, "first", "second")
	mustSeedBalance(test, service, memberIDValue, 20)

	router.Dispatch(context.Background(), memberMessage("!rewardclaim VIP 2"))

	privates := notifier.private[memberIDValue]
	if len(privates) != 1 {
		test.Fatalf("expected one private message, got %v", privates)
	}
	if !strings.Contains(privates[0], "first") || !strings.Contains(privates[0], "second") {
		test.Fatalf("expected claimed codes in private message, got %q", privates[0])
	}
	if reply := lastPublic(test, notifier); !strings.Contains(reply, "0") {
		test.Fatalf("expected remaining balance in reply, got %q", reply)
	}
}

func TestRewardClaimShortfallReported(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedReward(test, service, "VIP", 10, "only")
	mustSeedBalance(test, service, memberIDValue, 3)

	router.Dispatch(context.Background(), memberMessage("!rewardclaim VIP 1"))

	reply := lastPublic(test, notifier)
	if !strings.Contains(reply, "10") || !strings.Contains(reply, "3") {
		test.Fatalf("expected need and have amounts, got %q", reply)
	}
	if len(notifier.private) != 0 {
		test.Fatalf("expected no codes delivered, got %v", notifier.private)
	}
}

func TestRewardClaimStockShortageReported(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedReward(test, service, "VIP", 10, "only")
	mustSeedBalance(test, service, memberIDValue, 100)

	router.Dispatch(context.Background(), memberMessage("!rewardclaim VIP 2"))

	if reply := lastPublic(test, notifier); !strings.Contains(reply, "VIP") {
		test.Fatalf("expected stock notice, got %q", reply)
	}
	target, err := economy.NewUserID(memberIDValue)
	if err != nil {
		test.Fatalf("user id: %v", err)
	}
	if balance := service.Balance(target); balance != 100 {
		test.Fatalf("expected balance untouched, got %d", balance)
	}
}

func TestRewardClaimSurvivesClosedDMs(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	notifier.privateError = errors.New("dm closed")
	router, service := mustRouter(test, notifier)
	mustSeedReward(test, service, "VIP", 10, "only")
	mustSeedBalance(test, service, memberIDValue, 10)

	router.Dispatch(context.Background(), memberMessage("!rewardclaim VIP 1"))

	// The claim committed; the public reply still reports success.
	if reply := lastPublic(test, notifier); !strings.Contains(reply, "0") {
		test.Fatalf("expected success reply despite DM failure, got %q", reply)
	}
}

func TestRegisterSendsLinkPrivately(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, _ := mustRouter(test, notifier)

	router.Dispatch(context.Background(), memberMessage("!register"))

	privates := notifier.private[memberIDValue]
	if len(privates) != 1 {
		test.Fatalf("expected one private message, got %v", privates)
	}
	wantLink := "https://timewall.io/users/login?oid=" + partnerID + "&uid=" + memberIDValue
	if !strings.Contains(privates[0], wantLink) {
		test.Fatalf("expected registration link %q, got %q", wantLink, privates[0])
	}
}

func TestRegisterDMFailureReportedPublicly(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	notifier.privateError = errors.New("dm closed")
	router, _ := mustRouter(test, notifier)

	router.Dispatch(context.Background(), memberMessage("!register"))

	if len(notifier.public) != 1 {
		test.Fatalf("expected one public reply, got %v", notifier.public)
	}
}

func TestLangSwitchesReplyLanguage(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, service := mustRouter(test, notifier)
	mustSeedBalance(test, service, memberIDValue, 5)

	router.Dispatch(context.Background(), memberMessage("!lang en"))
	router.Dispatch(context.Background(), memberMessage("!balance"))

	if reply := lastPublic(test, notifier); !strings.Contains(reply, "Your balance") {
		test.Fatalf("expected english reply, got %q", reply)
	}
}

func TestLangRejectsUnsupportedLocale(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, _ := mustRouter(test, notifier)

	router.Dispatch(context.Background(), memberMessage("!lang de"))

	if reply := lastPublic(test, notifier); !strings.Contains(reply, "lang") {
		test.Fatalf("expected usage hint, got %q", reply)
	}
}

func TestHelpHidesAdminSectionFromMembers(test *testing.T) {
	test.Parallel()
	notifier := newRecordingNotifier()
	router, _ := mustRouter(test, notifier)

	router.Dispatch(context.Background(), memberMessage("!help"))
	memberHelp := lastPublic(test, notifier)
	router.Dispatch(context.Background(), adminMessage("!help"))
	adminHelp := lastPublic(test, notifier)

	if strings.Contains(memberHelp, "addbalance") {
		test.Fatalf("expected no admin commands for members, got %q", memberHelp)
	}
	if !strings.Contains(adminHelp, "addbalance") {
		test.Fatalf("expected admin commands for admins, got %q", adminHelp)
	}
}

func mustName(test *testing.T, raw string) economy.RewardName {
	test.Helper()
	name, err := economy.NewRewardName(raw)
	if err != nil {
		test.Fatalf("reward name: %v", err)
	}
	return name
}
