package economy

import (
	"fmt"
	"strings"
)

// CoinAmount is a strictly positive coin quantity used by mutating operations.
// Balances themselves are plain int64 values and may be zero.
type CoinAmount int64

// UserID identifies a community member.
type UserID struct {
	value string
}

// RewardName identifies a reward in the catalog. Names are case-sensitive.
type RewardName struct {
	value string
}

// RewardCode is a single opaque redemption code.
type RewardCode struct {
	value string
}

// Locale selects the reply language for a user.
type Locale string

const (
	LocaleItalian Locale = "it"
	LocaleEnglish Locale = "en"

	// DefaultLocale applies when a user never picked a language.
	DefaultLocale = LocaleItalian
)

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return UserID{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// NewRewardName validates and normalizes a reward name.
func NewRewardName(raw string) (RewardName, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RewardName{}, fmt.Errorf("%w: empty value", ErrInvalidRewardName)
	}
	return RewardName{value: trimmed}, nil
}

// String returns the normalized name.
func (name RewardName) String() string {
	return name.value
}

// NewRewardCode validates a redemption code.
func NewRewardCode(raw string) (RewardCode, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return RewardCode{}, fmt.Errorf("%w: empty value", ErrInvalidRewardCode)
	}
	return RewardCode{value: trimmed}, nil
}

// String returns the code text.
func (code RewardCode) String() string {
	return code.value
}

// NewCoinAmount validates an amount and ensures it is strictly positive.
func NewCoinAmount(raw int64) (CoinAmount, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidCoinAmount)
	}
	return CoinAmount(raw), nil
}

// Int64 returns the raw amount.
func (amount CoinAmount) Int64() int64 {
	return int64(amount)
}

// ParseLocale maps a raw language token to a supported Locale.
func ParseLocale(raw string) (Locale, error) {
	switch Locale(strings.ToLower(strings.TrimSpace(raw))) {
	case LocaleItalian:
		return LocaleItalian, nil
	case LocaleEnglish:
		return LocaleEnglish, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLocale, raw)
	}
}

// String returns the locale code.
func (locale Locale) String() string {
	return string(locale)
}

// RewardSummary is one row of the public reward listing.
type RewardSummary struct {
	Name  string
	Stock int
	Price int64
}

// ClaimReceipt reports the outcome of a successful claim.
type ClaimReceipt struct {
	Codes            []string
	RemainingBalance int64
}
