// Package i18n holds the reply string tables. Lookup is total: an unknown
// locale or missing entry falls back to the default locale so the router
// never formats an empty reply.
package i18n

import (
	"fmt"

	"github.com/MarkoPoloResearchLab/coinbot/pkg/economy"
)

// Key identifies one reply template.
type Key string

const (
	KeyBalanceSelf        Key = "balance_self"
	KeyBalanceOther       Key = "balance_other"
	KeyBalanceAdded       Key = "balance_added"
	KeyBalanceRemoved     Key = "balance_removed"
	KeyRewardCreated      Key = "reward_created"
	KeyRewardExists       Key = "reward_exists"
	KeyRewardUnknown      Key = "reward_unknown"
	KeyCodeAdded          Key = "code_added"
	KeyRewardDeleted      Key = "reward_deleted"
	KeyLeftoverCodes      Key = "leftover_codes"
	KeyLeftoverNone       Key = "leftover_none"
	KeyRewardsHeader      Key = "rewards_header"
	KeyRewardsLine        Key = "rewards_line"
	KeyRewardsNone        Key = "rewards_none"
	KeyInsufficientStock  Key = "insufficient_stock"
	KeyInsufficientFunds  Key = "insufficient_funds"
	KeyClaimOK            Key = "claim_ok"
	KeyClaimDelivery      Key = "claim_delivery"
	KeyRegisterDelivery   Key = "register_delivery"
	KeyRegisterSent       Key = "register_sent"
	KeyRegisterDMFailed   Key = "register_dm_failed"
	KeyLangSet            Key = "lang_set"
	KeyUsageAddBalance    Key = "usage_addbalance"
	KeyUsageRemoveBalance Key = "usage_removebalance"
	KeyUsageBalanceUser   Key = "usage_balanceuser"
	KeyUsageCreateReward  Key = "usage_createreward"
	KeyUsageAddReward     Key = "usage_addreward"
	KeyUsageDeleteReward  Key = "usage_deletereward"
	KeyUsageRewardClaim   Key = "usage_rewardclaim"
	KeyUsageLang          Key = "usage_lang"
	KeyHelpHeader         Key = "help_header"
	KeyHelpPublic         Key = "help_public"
	KeyHelpAdmin          Key = "help_admin"
)

var messages = map[economy.Locale]map[Key]string{
	economy.LocaleItalian: {
		KeyBalanceSelf:        "Hai un bilancio di %d coins.",
		KeyBalanceOther:       "<@%s> ha un bilancio di %d coins.",
		KeyBalanceAdded:       "Aggiunto %d coins a <@%s>. Bilancio: %d coins.",
		KeyBalanceRemoved:     "Bilancio rimosso per <@%s>.",
		KeyRewardCreated:      "Ricompensa %q creata a %d coins.",
		KeyRewardExists:       "La ricompensa %q esiste già.",
		KeyRewardUnknown:      "La ricompensa %q non esiste.",
		KeyCodeAdded:          "Codice aggiunto. Stock %q: %d.",
		KeyRewardDeleted:      "Ricompensa %q eliminata e codici inviati in privato.",
		KeyLeftoverCodes:      "Codici rimanenti per %q: %s",
		KeyLeftoverNone:       "(nessuno)",
		KeyRewardsHeader:      "Ricompense disponibili:",
		KeyRewardsLine:        "%s: %d disponibili a %d coins",
		KeyRewardsNone:        "Nessuna ricompensa disponibile.",
		KeyInsufficientStock:  "Stock insufficiente per %q.",
		KeyInsufficientFunds:  "Servono %d coins, ne hai %d.",
		KeyClaimOK:            "Riscatto ok. Bilancio rimanente: %d coins.",
		KeyClaimDelivery:      "Hai riscattato %d codici per %q: %s",
		KeyRegisterDelivery:   "Ecco il tuo link di registrazione: %s",
		KeyRegisterSent:       "Ti ho mandato il link in privato.",
		KeyRegisterDMFailed:   "Non riesco a scriverti in privato. Abilita i DM o scrivimi un messaggio.",
		KeyLangSet:            "Lingua impostata: %s.",
		KeyUsageAddBalance:    "Usa: `%saddbalance @username <amount>`",
		KeyUsageRemoveBalance: "Usa: `%sremovebalance @username`",
		KeyUsageBalanceUser:   "Usa: `%sbalanceuser @username`",
		KeyUsageCreateReward:  "Usa: `%screatereward <nome> <prezzo>`",
		KeyUsageAddReward:     "Usa: `%saddreward <nome> <codice>`",
		KeyUsageDeleteReward:  "Usa: `%sdeletereward <nome>`",
		KeyUsageRewardClaim:   "Usa: `%srewardclaim <nome> <quantità>`",
		KeyUsageLang:          "Usa: `%slang it|en`",
		KeyHelpHeader:         "Comandi disponibili:",
		KeyHelpPublic:         "`%sbalance` - il tuo bilancio\n`%srewards` - lista ricompense\n`%srewardclaim <nome> <quantità>` - riscatta codici\n`%sregister` - link di registrazione in privato\n`%slang it|en` - lingua delle risposte\n`%shelp` - questo elenco",
		KeyHelpAdmin:          "Comandi admin:\n`%saddbalance @username <amount>`\n`%sremovebalance @username`\n`%sbalanceuser @username`\n`%screatereward <nome> <prezzo>`\n`%saddreward <nome> <codice>`\n`%sdeletereward <nome>`",
	},
	economy.LocaleEnglish: {
		KeyBalanceSelf:        "Your balance is %d coins.",
		KeyBalanceOther:       "<@%s> has a balance of %d coins.",
		KeyBalanceAdded:       "Added %d coins to <@%s>. Balance: %d coins.",
		KeyBalanceRemoved:     "Balance removed for <@%s>.",
		KeyRewardCreated:      "Reward %q created at %d coins.",
		KeyRewardExists:       "Reward %q already exists.",
		KeyRewardUnknown:      "Reward %q does not exist.",
		KeyCodeAdded:          "Code added. Stock %q: %d.",
		KeyRewardDeleted:      "Reward %q deleted, codes sent privately.",
		KeyLeftoverCodes:      "Remaining codes for %q: %s",
		KeyLeftoverNone:       "(none)",
		KeyRewardsHeader:      "Available rewards:",
		KeyRewardsLine:        "%s: %d available at %d coins",
		KeyRewardsNone:        "No rewards available.",
		KeyInsufficientStock:  "Insufficient stock for %q.",
		KeyInsufficientFunds:  "You need %d coins, you have %d.",
		KeyClaimOK:            "Claim ok. Remaining balance: %d coins.",
		KeyClaimDelivery:      "You claimed %d codes for %q: %s",
		KeyRegisterDelivery:   "Here is your registration link: %s",
		KeyRegisterSent:       "I sent you the link privately.",
		KeyRegisterDMFailed:   "I cannot message you privately. Enable DMs or message me first.",
		KeyLangSet:            "Language set: %s.",
		KeyUsageAddBalance:    "Use: `%saddbalance @username <amount>`",
		KeyUsageRemoveBalance: "Use: `%sremovebalance @username`",
		KeyUsageBalanceUser:   "Use: `%sbalanceuser @username`",
		KeyUsageCreateReward:  "Use: `%screatereward <name> <price>`",
		KeyUsageAddReward:     "Use: `%saddreward <name> <code>`",
		KeyUsageDeleteReward:  "Use: `%sdeletereward <name>`",
		KeyUsageRewardClaim:   "Use: `%srewardclaim <name> <quantity>`",
		KeyUsageLang:          "Use: `%slang it|en`",
		KeyHelpHeader:         "Available commands:",
		KeyHelpPublic:         "`%sbalance` - your balance\n`%srewards` - reward listing\n`%srewardclaim <name> <quantity>` - claim codes\n`%sregister` - registration link in private\n`%slang it|en` - reply language\n`%shelp` - this listing",
		KeyHelpAdmin:          "Admin commands:\n`%saddbalance @username <amount>`\n`%sremovebalance @username`\n`%sbalanceuser @username`\n`%screatereward <name> <price>`\n`%saddreward <name> <code>`\n`%sdeletereward <name>`",
	},
}

// Sprintf formats the template for the locale, falling back to the default
// locale when the locale or the key is unknown.
func Sprintf(locale economy.Locale, key Key, args ...any) string {
	table, ok := messages[locale]
	if !ok {
		table = messages[economy.DefaultLocale]
	}
	template, ok := table[key]
	if !ok {
		template = messages[economy.DefaultLocale][key]
	}
	if template == "" {
		return string(key)
	}
	return fmt.Sprintf(template, args...)
}
