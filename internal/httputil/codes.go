package httputil

// Machine-readable codes returned next to the details message.
const (
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"

	CodeMissingCredentials = "MISSING_CREDENTIALS"
	CodeInvalidEmailFormat = "INVALID_EMAIL_FORMAT"
	CodeEmailAlreadyExists = "EMAIL_ALREADY_EXISTS"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeWrongPassword      = "WRONG_PASSWORD"
	CodeExternalAccount    = "EXTERNAL_ACCOUNT"

	CodeMissingSession = "MISSING_SESSION"
	CodeOAuthDisabled  = "OAUTH_DISABLED"
	CodeSessionInvalid = "SESSION_INVALID"

	CodeAlreadyVerified     = "ALREADY_VERIFIED"
	CodeInvalidToken        = "INVALID_TOKEN"
	CodeTokenExpired        = "TOKEN_EXPIRED"
	CodeTokenAlreadyUsed    = "TOKEN_ALREADY_USED"
	CodeInvalidResetToken   = "INVALID_RESET_TOKEN"
	CodeVerificationMissing = "VERIFICATION_TOKEN_REQUIRED"

	CodeChatNotFound = "CHAT_NOT_FOUND"
	CodeEmptyMessage = "EMPTY_MESSAGE"
)
