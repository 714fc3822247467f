// Package brokererr defines the domain error taxonomy for the trading
// pipeline. Provider-specific numeric codes are translated into these types
// exactly once, at the brokerage integration boundary.
package brokererr

import (
	"errors"
	"fmt"
)

// ExecKind subtypes an ExecutionError.
type ExecKind string

const (
	KindWashTrade         ExecKind = "WASH_TRADE"
	KindInsufficientFunds ExecKind = "INSUFFICIENT_FUNDS"
	KindInvalidOrder      ExecKind = "INVALID_ORDER"
	KindMarketClosed      ExecKind = "MARKET_CLOSED"
	KindUnknown           ExecKind = "UNKNOWN"
)

// Provider error codes observed from the brokerage API.
const (
	CodeInsufficientFunds = 40310000
	CodeWashTrade         = 40310100
	CodeMarketClosed      = 40310500
	CodeInvalidOrder      = 40010001
)

// ConfigError means an unknown agent id or missing risk-limit configuration.
// Fatal for the call; never silently defaulted.
type ConfigError struct {
	AgentID string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for agent %q: %s", e.AgentID, e.Reason)
}

// ExecutionError means the brokerage rejected an order. Never retried
// automatically; the caller decides whether to resubmit.
type ExecutionError struct {
	Kind    ExecKind
	Code    int
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution rejected (%s, code %d): %s", e.Kind, e.Code, e.Message)
}

// ConflictResolutionError means a conflicting open order failed to cancel.
// Non-fatal: the coordinator logs it and proceeds, accepting that the new
// order may itself bounce as a wash trade.
type ConflictResolutionError struct {
	OrderID string
	Err     error
}

func (e *ConflictResolutionError) Error() string {
	return fmt.Sprintf("failed to cancel conflicting order %s: %v", e.OrderID, e.Err)
}

func (e *ConflictResolutionError) Unwrap() error { return e.Err }

// PersistenceError means a ledger read or write failed. In-memory state is
// retained and the next mutation attempts to persist again.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FromProviderCode maps a brokerage numeric code into a typed
// ExecutionError. Unrecognized codes map to KindUnknown.
func FromProviderCode(code int, message string) *ExecutionError {
	kind := KindUnknown
	switch code {
	case CodeWashTrade:
		kind = KindWashTrade
	case CodeInsufficientFunds:
		kind = KindInsufficientFunds
	case CodeInvalidOrder:
		kind = KindInvalidOrder
	case CodeMarketClosed:
		kind = KindMarketClosed
	}
	return &ExecutionError{Kind: kind, Code: code, Message: message}
}

// AsExecution unwraps err into an ExecutionError if it is one.
func AsExecution(err error) (*ExecutionError, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsWashTrade reports whether err is a wash-trade rejection.
func IsWashTrade(err error) bool {
	ee, ok := AsExecution(err)
	return ok && ee.Kind == KindWashTrade
}
