package economy

const (
	operationCredit       = "credit"
	operationReset        = "reset"
	operationCreateReward = "create_reward"
	operationAddCode      = "add_code"
	operationDeleteReward = "delete_reward"
	operationClaim        = "claim"
	operationSetLanguage  = "set_language"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorSubjectReward = "reward"

	errorCodeDuplicate = "duplicate"
	errorCodeMissing   = "missing"
	errorCodeQuantity  = "quantity"
	errorCodeStock     = "stock"
	errorCodeFunds     = "funds"
)
