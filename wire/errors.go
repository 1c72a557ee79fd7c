package wire

import (
	"errors"
	"fmt"
)

// Category groups error codes so callers can decide policy (retry, log,
// abort) without switching on the specific code.
type Category string

const (
	CategoryCrypto     Category = "Crypto"
	CategoryValidation Category = "Validation"
	CategoryFormat     Category = "Format"
	CategorySecurity   Category = "Security"
	CategoryStore      Category = "Store"
	CategoryTransport  Category = "Transport"
)

// Stable error codes, per spec.md §4.1 / §7.
const (
	CodeDecryptionFailed     = "DecryptionFailed"
	CodeSignatureInvalid     = "SignatureInvalid"
	CodeKeyGenerationFailed  = "KeyGenerationFailed"
	CodeContentTooLarge      = "ContentTooLarge"
	CodeTimestampSkew        = "TimestampSkew"
	CodeMessageExpired       = "MessageExpired"
	CodeRecipientMismatch    = "RecipientMismatch"
	CodeSenderKeyMismatch    = "SenderKeyMismatch"
	CodeInvalidKeyLength     = "InvalidKeyLength"
	CodeMessageIdMismatch    = "MessageIdMismatch"
	CodeInvalidMessageFormat = "InvalidMessageFormat"
	CodeBase64DecodeFailed   = "Base64DecodeFailed"
	CodeJsonParseFailed      = "JsonParseFailed"
	CodeReplayDetected       = "ReplayDetected"
	CodeUnknownSender        = "UnknownSender"
	CodeStorageError         = "StorageError"
	CodeTransportError       = "TransportError"
	CodeSessionRateLimited   = "SessionRateLimited"
)

// Error is the stable, inspectable error type returned across every
// dmesh-core package boundary. Callers should compare against the
// package-level sentinels with errors.Is, or inspect Code directly when a
// wrapped sentinel isn't convenient (e.g. after JSON (de)serialization of
// a code string received from a remote peer).
type Error struct {
	Code     string
	Category Category
	Detail   error
}

func (e *Error) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Detail)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Detail }

// Is reports equality by Code, so errors.Is(err, ErrSignatureInvalid)
// matches regardless of the wrapped Detail.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// newErr builds a sentinel with no detail; WithDetail attaches one for a
// specific occurrence.
func newErr(code string, cat Category) *Error {
	return &Error{Code: code, Category: cat}
}

// WithDetail returns a copy of the sentinel carrying a technical detail,
// for use at the point an error actually occurs:
//
//	return ErrBase64DecodeFailed.WithDetail(err)
func (e *Error) WithDetail(detail error) *Error {
	return &Error{Code: e.Code, Category: e.Category, Detail: detail}
}

// Sentinels for every stable code. Compare inbound errors with errors.Is.
var (
	ErrDecryptionFailed     = newErr(CodeDecryptionFailed, CategoryCrypto)
	ErrSignatureInvalid     = newErr(CodeSignatureInvalid, CategoryCrypto)
	ErrKeyGenerationFailed  = newErr(CodeKeyGenerationFailed, CategoryCrypto)
	ErrContentTooLarge      = newErr(CodeContentTooLarge, CategoryValidation)
	ErrTimestampSkew        = newErr(CodeTimestampSkew, CategoryValidation)
	ErrMessageExpired       = newErr(CodeMessageExpired, CategoryValidation)
	ErrRecipientMismatch    = newErr(CodeRecipientMismatch, CategoryValidation)
	ErrSenderKeyMismatch    = newErr(CodeSenderKeyMismatch, CategoryValidation)
	ErrInvalidKeyLength     = newErr(CodeInvalidKeyLength, CategoryValidation)
	ErrMessageIdMismatch    = newErr(CodeMessageIdMismatch, CategoryValidation)
	ErrInvalidMessageFormat = newErr(CodeInvalidMessageFormat, CategoryFormat)
	ErrBase64DecodeFailed   = newErr(CodeBase64DecodeFailed, CategoryFormat)
	ErrJsonParseFailed      = newErr(CodeJsonParseFailed, CategoryFormat)
	ErrReplayDetected       = newErr(CodeReplayDetected, CategorySecurity)
	ErrUnknownSender        = newErr(CodeUnknownSender, CategorySecurity)
	ErrStorageError         = newErr(CodeStorageError, CategoryStore)
	ErrTransportError       = newErr(CodeTransportError, CategoryTransport)
	ErrSessionRateLimited   = newErr(CodeSessionRateLimited, CategorySecurity)
)
