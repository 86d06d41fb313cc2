// Package mediaerr classifies conversion failures so the HTTP adapter can map
// them to a status code without inspecting error strings.
package mediaerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a conversion failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidEncoding marks malformed transport framing (bad base64).
	KindInvalidEncoding
	// KindInvalidAudio marks audio bytes that cannot be decoded.
	KindInvalidAudio
	// KindInvalidImage marks image bytes that cannot be decoded.
	KindInvalidImage
	// KindUnsupportedFormat marks input that decodes but carries no usable channels or pixels.
	KindUnsupportedFormat
	// KindMissingCapability marks a decode/encode provider absent from this deployment.
	KindMissingCapability
	// KindDecompression marks an outer content-encoding layer that failed to unwrap.
	KindDecompression
	// KindPayloadTooLarge marks a request body over the configured limit.
	KindPayloadTooLarge
)

func (k Kind) String() string {
	switch k {
	case KindInvalidEncoding:
		return "invalid_encoding"
	case KindInvalidAudio:
		return "invalid_audio"
	case KindInvalidImage:
		return "invalid_image"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindMissingCapability:
		return "missing_capability"
	case KindDecompression:
		return "decompression"
	case KindPayloadTooLarge:
		return "payload_too_large"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Message is safe to return to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidEncoding   = &Error{Kind: KindInvalidEncoding, Message: "invalid encoding"}
	ErrInvalidAudio      = &Error{Kind: KindInvalidAudio, Message: "invalid audio"}
	ErrInvalidImage      = &Error{Kind: KindInvalidImage, Message: "invalid image"}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat, Message: "unsupported format"}
	ErrMissingCapability = &Error{Kind: KindMissingCapability, Message: "missing capability"}
	ErrDecompression     = &Error{Kind: KindDecompression, Message: "decompression failed"}
	ErrPayloadTooLarge   = &Error{Kind: KindPayloadTooLarge, Message: "payload too large"}
)

// New builds a classified error with a caller-facing message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func InvalidEncoding(err error) *Error {
	return Wrap(KindInvalidEncoding, err, "invalid encoding")
}

func InvalidAudio(format string, args ...any) *Error {
	return New(KindInvalidAudio, format, args...)
}

func InvalidImage(format string, args ...any) *Error {
	return New(KindInvalidImage, format, args...)
}

func UnsupportedFormat(format string, args ...any) *Error {
	return New(KindUnsupportedFormat, format, args...)
}

func MissingCapability(capability string) *Error {
	return New(KindMissingCapability, "missing capability: %s", capability)
}

func Decompression(err error) *Error {
	return Wrap(KindDecompression, err, "decompression failed")
}
