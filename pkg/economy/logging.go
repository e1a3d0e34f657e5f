package economy

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// Persister receives a request for eventual persistence after every
// successful mutation. Implementations must not block the caller.
type Persister interface {
	ScheduleSave()
}

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing economy operation.
type OperationLog struct {
	Operation string
	UserID    UserID
	Reward    RewardName
	Amount    int64
	Quantity  int
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithPersister wires the snapshot store that mutations notify.
func WithPersister(persister Persister) ServiceOption {
	return func(service *Service) {
		service.persister = persister
	}
}
