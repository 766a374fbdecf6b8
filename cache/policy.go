package cache

import "sync"

// DefaultGenericError is the registry's fallback error message.
const DefaultGenericError = "An error has occurred"

// ErrorHandler formats an item failure at registry level. value is the
// item's value (load) or the value being saved or deleted. Returning ""
// defers to the generic message.
type ErrorHandler func(id string, err error, value any) string

// ErrorPolicy is the registry-wide fallback for item error messages.
//
// Contract:
// - Concurrency: safe for concurrent use; setters may race with Message.
type ErrorPolicy struct {
	mu      sync.RWMutex
	generic string
	handler ErrorHandler
}

// NewErrorPolicy creates a policy. An empty generic uses DefaultGenericError.
func NewErrorPolicy(generic string, handler ErrorHandler) *ErrorPolicy {
	p := &ErrorPolicy{handler: handler}
	p.SetGenericError(generic)
	return p
}

// SetGenericError replaces the generic message. Empty restores the default.
func (p *ErrorPolicy) SetGenericError(msg string) {
	if msg == "" {
		msg = DefaultGenericError
	}
	p.mu.Lock()
	p.generic = msg
	p.mu.Unlock()
}

// SetErrorHandler replaces the registry-level handler. Nil removes it.
func (p *ErrorPolicy) SetErrorHandler(h ErrorHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// GenericError returns the current generic message.
func (p *ErrorPolicy) GenericError() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.generic
}

// Message returns the handler's message for err, or the generic message
// when there is no handler or it declines.
func (p *ErrorPolicy) Message(id string, err error, value any) string {
	p.mu.RLock()
	handler, generic := p.handler, p.generic
	p.mu.RUnlock()

	if handler != nil {
		if msg := handler(id, err, value); msg != "" {
			return msg
		}
	}
	return generic
}
