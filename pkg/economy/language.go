package economy

import "context"

// Language returns the user's reply language, falling back to the default
// when the user never picked one.
func (service *Service) Language(userID UserID) Locale {
	service.mu.Lock()
	defer service.mu.Unlock()
	if locale, ok := service.langs[userID.String()]; ok {
		return locale
	}
	return DefaultLocale
}

// SetLanguage stores the user's reply language. The preference persists
// indefinitely.
func (service *Service) SetLanguage(ctx context.Context, userID UserID, locale Locale) {
	service.mu.Lock()
	service.langs[userID.String()] = locale
	service.mu.Unlock()

	service.scheduleSave()
	service.logOperation(ctx, OperationLog{
		Operation: operationSetLanguage,
		UserID:    userID,
	})
}
