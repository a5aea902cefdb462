package common

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("not found")

// NotFoundError reports an unknown provider, plugin, job or conversation.
type NotFoundError struct {
	Kind string
	Key  string
}

func NewNotFound(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConfigurationError means a required credential or setting is absent.
// It is never retried; the caller has to fix its configuration.
type ConfigurationError struct {
	Component string
	Msg       string
}

func NewConfigurationError(component, msg string) *ConfigurationError {
	return &ConfigurationError{Component: component, Msg: msg}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Component, e.Msg)
}

// ProviderError wraps a failed or unreachable upstream model backend.
// Status is the upstream HTTP status when one was received, 0 otherwise.
type ProviderError struct {
	Provider string
	Status   int
	Msg      string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.Status, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// PluginExecutionError is logged by the hook chain and never returned to callers.
type PluginExecutionError struct {
	Plugin string
	Phase  string
	Err    error
}

func (e *PluginExecutionError) Error() string {
	return fmt.Sprintf("plugin %s %s hook: %v", e.Plugin, e.Phase, e.Err)
}

func (e *PluginExecutionError) Unwrap() error { return e.Err }

// RetrievalError is logged by the RAG step, which then degrades to empty context.
type RetrievalError struct {
	Stage string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
