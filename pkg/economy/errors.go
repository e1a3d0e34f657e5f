package economy

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the economy service.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrRewardNotFound       = errors.New("reward not found")
	ErrRewardExists         = errors.New("reward already exists")
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidRewardName    = errors.New("invalid reward name")
	ErrInvalidRewardCode    = errors.New("invalid reward code")
	ErrInvalidCoinAmount    = errors.New("invalid coin amount")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidLocale        = errors.New("invalid locale")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// OperationError annotates a failed economy operation with the operation
// name, the subject it acted on, and a stable code. The sentinel stays
// reachable through Unwrap, so callers keep matching with errors.Is while
// logs carry the full claim/reward/stock context.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation names the economy operation that failed.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject names what the operation acted on.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code is the stable machine-readable failure code.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError attaches operation metadata to err; a nil err stays nil so call
// sites can wrap unconditionally.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
