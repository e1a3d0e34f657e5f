package economy

import (
	"context"
	"errors"
	"sort"
)

// CreateReward adds a reward with the given unit price and an empty code
// list. Creating a name that already exists is rejected; silently
// overwriting would discard the existing code inventory.
func (service *Service) CreateReward(ctx context.Context, name RewardName, price CoinAmount) error {
	service.mu.Lock()
	var operationError error
	if _, exists := service.rewards[name.String()]; exists {
		operationError = WrapError(operationCreateReward, errorSubjectReward, errorCodeDuplicate, ErrRewardExists)
	} else {
		service.rewards[name.String()] = &rewardState{price: price.Int64()}
	}
	service.mu.Unlock()

	if operationError == nil {
		service.scheduleSave()
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationCreateReward,
		Reward:    name,
		Amount:    price.Int64(),
		Error:     operationError,
	})
	return operationError
}

// AddCode appends one redemption code to the reward's FIFO inventory and
// returns the resulting stock.
func (service *Service) AddCode(ctx context.Context, name RewardName, code RewardCode) (int, error) {
	service.mu.Lock()
	var (
		stock          int
		operationError error
	)
	reward, exists := service.rewards[name.String()]
	if !exists {
		operationError = WrapError(operationAddCode, errorSubjectReward, errorCodeMissing, ErrRewardNotFound)
	} else {
		reward.codes = append(reward.codes, code.String())
		stock = len(reward.codes)
	}
	service.mu.Unlock()

	if operationError == nil {
		service.scheduleSave()
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationAddCode,
		Reward:    name,
		Quantity:  stock,
		Error:     operationError,
	})
	return stock, operationError
}

// DeleteReward removes the reward and returns any codes that were never
// claimed. The caller is responsible for surfacing them once; afterwards
// they are unrecoverable.
func (service *Service) DeleteReward(ctx context.Context, name RewardName) ([]string, error) {
	service.mu.Lock()
	var (
		leftover       []string
		operationError error
	)
	reward, exists := service.rewards[name.String()]
	if !exists {
		operationError = WrapError(operationDeleteReward, errorSubjectReward, errorCodeMissing, ErrRewardNotFound)
	} else {
		leftover = append([]string(nil), reward.codes...)
		delete(service.rewards, name.String())
	}
	service.mu.Unlock()

	if operationError == nil {
		service.scheduleSave()
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationDeleteReward,
		Reward:    name,
		Quantity:  len(leftover),
		Error:     operationError,
	})
	return leftover, operationError
}

// Claim exchanges coins for the first quantity codes of the reward. The
// stock check runs before the cost is computed and both the stock and the
// balance check pass before either side mutates, so the code removal and the
// debit are a single logical transaction.
func (service *Service) Claim(ctx context.Context, userID UserID, name RewardName, quantity int) (ClaimReceipt, error) {
	service.mu.Lock()
	receipt, operationError := service.claimLocked(userID, name, quantity)
	service.mu.Unlock()
	if operationError != nil {
		operationError = WrapError(operationClaim, errorSubjectReward, claimErrorCode(operationError), operationError)
	}

	if operationError == nil {
		service.scheduleSave()
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationClaim,
		UserID:    userID,
		Reward:    name,
		Quantity:  quantity,
		Error:     operationError,
	})
	return receipt, operationError
}

func (service *Service) claimLocked(userID UserID, name RewardName, quantity int) (ClaimReceipt, error) {
	reward, exists := service.rewards[name.String()]
	if !exists {
		return ClaimReceipt{}, ErrRewardNotFound
	}
	if quantity <= 0 {
		return ClaimReceipt{}, ErrInvalidQuantity
	}
	if quantity > len(reward.codes) {
		return ClaimReceipt{}, ErrInsufficientStock
	}
	cost := reward.price * int64(quantity)
	remaining, err := service.debitLocked(userID, cost)
	if err != nil {
		return ClaimReceipt{}, err
	}
	claimed := append([]string(nil), reward.codes[:quantity]...)
	reward.codes = reward.codes[quantity:]
	return ClaimReceipt{
		Codes:            claimed,
		RemainingBalance: remaining,
	}, nil
}

func claimErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRewardNotFound):
		return errorCodeMissing
	case errors.Is(err, ErrInvalidQuantity):
		return errorCodeQuantity
	case errors.Is(err, ErrInsufficientStock):
		return errorCodeStock
	default:
		return errorCodeFunds
	}
}

// RewardPrice reports the unit price of a reward, false when absent. Reply
// formatting uses it to state the shortfall on a rejected claim.
func (service *Service) RewardPrice(name RewardName) (int64, bool) {
	service.mu.Lock()
	defer service.mu.Unlock()
	reward, exists := service.rewards[name.String()]
	if !exists {
		return 0, false
	}
	return reward.price, true
}

// ListRewards reports (name, stock, price) rows sorted by name so a single
// listing is deterministic.
func (service *Service) ListRewards() []RewardSummary {
	service.mu.Lock()
	defer service.mu.Unlock()
	summaries := make([]RewardSummary, 0, len(service.rewards))
	for name, reward := range service.rewards {
		summaries = append(summaries, RewardSummary{
			Name:  name,
			Stock: len(reward.codes),
			Price: reward.price,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}
