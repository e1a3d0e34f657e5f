package economy

import (
	"context"
	"fmt"
	"sync"
)

// Service owns the canonical in-memory state: the balance ledger, the reward
// catalog, and per-user language preferences. Command handling is serialized
// by the transport, but the debounced save timer snapshots state from its own
// goroutine, so access goes through a mutex.
type Service struct {
	mu        sync.Mutex
	balances  map[string]int64
	rewards   map[string]*rewardState
	langs     map[string]Locale
	persister Persister
	logger    OperationLogger
}

type rewardState struct {
	price int64
	codes []string
}

// NewService restores a Service from a snapshot. The snapshot is validated
// against the state invariants; a violating snapshot is rejected so startup
// fails loudly instead of silently discarding data.
func NewService(snapshot Snapshot, options ...ServiceOption) (*Service, error) {
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	service := &Service{
		balances: make(map[string]int64, len(snapshot.UserBalances)),
		rewards:  make(map[string]*rewardState, len(snapshot.Rewards)),
		langs:    make(map[string]Locale, len(snapshot.UserLangs)),
	}
	for userID, balance := range snapshot.UserBalances {
		service.balances[userID] = balance
	}
	for name, reward := range snapshot.Rewards {
		service.rewards[name] = &rewardState{
			price: reward.Price,
			codes: append([]string(nil), reward.Codes...),
		}
	}
	for userID, locale := range snapshot.UserLangs {
		parsed, err := ParseLocale(locale)
		if err != nil {
			return nil, fmt.Errorf("%w: user %s", ErrInvalidSnapshot, userID)
		}
		service.langs[userID] = parsed
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// Snapshot deep-copies the full state graph for persistence.
func (service *Service) Snapshot() Snapshot {
	service.mu.Lock()
	defer service.mu.Unlock()
	snapshot := Snapshot{
		UserBalances: make(map[string]int64, len(service.balances)),
		Rewards:      make(map[string]RewardSnapshot, len(service.rewards)),
		UserLangs:    make(map[string]string, len(service.langs)),
	}
	for userID, balance := range service.balances {
		snapshot.UserBalances[userID] = balance
	}
	for name, reward := range service.rewards {
		snapshot.Rewards[name] = RewardSnapshot{
			Price: reward.price,
			Codes: append([]string(nil), reward.codes...),
		}
	}
	for userID, locale := range service.langs {
		snapshot.UserLangs[userID] = locale.String()
	}
	return snapshot
}

func (service *Service) scheduleSave() {
	if service.persister != nil {
		service.persister.ScheduleSave()
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}
