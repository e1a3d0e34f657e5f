package economy

import "context"

// Balance returns the user's coin balance, zero for unknown users.
func (service *Service) Balance(userID UserID) int64 {
	service.mu.Lock()
	defer service.mu.Unlock()
	return service.balances[userID.String()]
}

// Credit adds coins to the user's balance and returns the new balance. The
// entry is created implicitly on first credit.
func (service *Service) Credit(ctx context.Context, userID UserID, amount CoinAmount) (int64, error) {
	service.mu.Lock()
	updated := service.balances[userID.String()] + amount.Int64()
	service.balances[userID.String()] = updated
	service.mu.Unlock()

	service.scheduleSave()
	service.logOperation(ctx, OperationLog{
		Operation: operationCredit,
		UserID:    userID,
		Amount:    amount.Int64(),
	})
	return updated, nil
}

// Reset removes the user's ledger entry entirely. Resetting an absent user
// is a no-op with the same outcome, so the operation is idempotent.
func (service *Service) Reset(ctx context.Context, userID UserID) {
	service.mu.Lock()
	delete(service.balances, userID.String())
	service.mu.Unlock()

	service.scheduleSave()
	service.logOperation(ctx, OperationLog{
		Operation: operationReset,
		UserID:    userID,
	})
}

// debitLocked lowers the balance, rejecting any debit that would go negative.
// Callers hold the mutex.
func (service *Service) debitLocked(userID UserID, amount int64) (int64, error) {
	current := service.balances[userID.String()]
	if current < amount {
		return current, ErrInsufficientFunds
	}
	updated := current - amount
	service.balances[userID.String()] = updated
	return updated, nil
}
