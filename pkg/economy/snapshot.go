package economy

import "fmt"

// RewardSnapshot is the durable form of a single reward.
type RewardSnapshot struct {
	Price int64    `json:"price"`
	Codes []string `json:"codes"`
}

// Snapshot is the complete serialized state graph. The on-disk file always
// holds exactly one of these, pretty-printed.
type Snapshot struct {
	UserBalances map[string]int64          `json:"userBalances"`
	Rewards      map[string]RewardSnapshot `json:"rewards"`
	UserLangs    map[string]string         `json:"userLangs,omitempty"`
}

// NewSnapshot returns an empty, well-formed snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{
		UserBalances: map[string]int64{},
		Rewards:      map[string]RewardSnapshot{},
		UserLangs:    map[string]string{},
	}
}

// Clone deep-copies the snapshot so callers can hold it across mutations.
func (snapshot Snapshot) Clone() Snapshot {
	cloned := Snapshot{
		UserBalances: make(map[string]int64, len(snapshot.UserBalances)),
		Rewards:      make(map[string]RewardSnapshot, len(snapshot.Rewards)),
		UserLangs:    make(map[string]string, len(snapshot.UserLangs)),
	}
	for userID, balance := range snapshot.UserBalances {
		cloned.UserBalances[userID] = balance
	}
	for name, reward := range snapshot.Rewards {
		cloned.Rewards[name] = RewardSnapshot{
			Price: reward.Price,
			Codes: append([]string(nil), reward.Codes...),
		}
	}
	for userID, locale := range snapshot.UserLangs {
		cloned.UserLangs[userID] = locale
	}
	return cloned
}

// Validate rejects snapshots that violate the state invariants: negative
// balances, non-positive reward prices, empty codes, unknown locales.
func (snapshot Snapshot) Validate() error {
	for userID, balance := range snapshot.UserBalances {
		if userID == "" {
			return fmt.Errorf("%w: empty user id in balances", ErrInvalidSnapshot)
		}
		if balance < 0 {
			return fmt.Errorf("%w: negative balance %d for user %s", ErrInvalidSnapshot, balance, userID)
		}
	}
	for name, reward := range snapshot.Rewards {
		if name == "" {
			return fmt.Errorf("%w: empty reward name", ErrInvalidSnapshot)
		}
		if reward.Price <= 0 {
			return fmt.Errorf("%w: non-positive price %d for reward %s", ErrInvalidSnapshot, reward.Price, name)
		}
		for _, code := range reward.Codes {
			if code == "" {
				return fmt.Errorf("%w: empty code for reward %s", ErrInvalidSnapshot, name)
			}
		}
	}
	for userID, locale := range snapshot.UserLangs {
		if _, err := ParseLocale(locale); err != nil {
			return fmt.Errorf("%w: locale %q for user %s", ErrInvalidSnapshot, locale, userID)
		}
	}
	return nil
}
