package llm

import (
	"errors"
	"fmt"
)

// Sentinel errors for provider failures. Callers branch on these to decide
// whether to degrade to rule-based analysis instead of failing the request.
var (
	// ErrRemoteUnavailable 表示下游模型服务不可达或超时。
	ErrRemoteUnavailable = errors.New("llm: remote service unavailable")

	// ErrMalformedResponse 表示模型返回了无法解析的内容。
	ErrMalformedResponse = errors.New("llm: malformed response")
)

// RemoteUnavailablef wraps ErrRemoteUnavailable with detail.
func RemoteUnavailablef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRemoteUnavailable, fmt.Sprintf(format, args...))
}

// MalformedResponsef wraps ErrMalformedResponse with detail.
func MalformedResponsef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}

// IsRemoteUnavailable reports whether err stems from an unreachable provider.
func IsRemoteUnavailable(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable)
}

// IsMalformedResponse reports whether err stems from an unparsable model reply.
func IsMalformedResponse(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
