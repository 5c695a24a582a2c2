package service

import "fmt"

// Domain error codes surfaced to clients as error events.
const (
	CodeInvalidConnectionData = "INVALID_CONNECTION_DATA"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeRecipientNotFound     = "RECIPIENT_NOT_FOUND"
	CodePartnerNotFound       = "PARTNER_NOT_FOUND"
	CodeCannotSendToSelf      = "CANNOT_SEND_TO_SELF"
	CodeInvalidReplyMessage   = "INVALID_REPLY_MESSAGE"
	CodeMessageNotFound       = "MESSAGE_NOT_FOUND"
	CodeUnsupportedFileType   = "UNSUPPORTED_FILE_TYPE"
	CodeFileTooLarge          = "FILE_TOO_LARGE"
	CodeUserAlreadyExists     = "USER_ALREADY_EXISTS"
	CodePhoneAlreadyExists    = "PHONE_ALREADY_EXISTS"
	CodeValidationError       = "VALIDATION_ERROR"
	CodeSomethingWentWrong    = "SOMETHING_WENT_WRONG"
)

// DomainError is a client-visible failure with a stable code. Anything else
// that escapes a service is a system error and gets masked as
// SOMETHING_WENT_WRONG at the boundary.
type DomainError struct {
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrRecipientNotFound = NewDomainError(CodeRecipientNotFound, "Recipient not found")
	ErrPartnerNotFound   = NewDomainError(CodePartnerNotFound, "Partner not found")
	ErrCannotSendToSelf  = NewDomainError(CodeCannotSendToSelf, "Cannot send message to yourself")
	ErrInvalidReply      = NewDomainError(CodeInvalidReplyMessage, "Invalid reply message")
	ErrMessageNotFound   = NewDomainError(CodeMessageNotFound, "Message not found")
	ErrUserNotFound      = NewDomainError(CodeUserNotFound, "User not found")
	ErrUserExists        = NewDomainError(CodeUserAlreadyExists, "User already exists")
	ErrPhoneExists       = NewDomainError(CodePhoneAlreadyExists, "Phone number already registered")
)
