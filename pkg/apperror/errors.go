package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an AppError by how the caller must react to it.
type Kind int

const (
	// KindConfiguration marks a setup bug. It must halt the run.
	KindConfiguration Kind = iota + 1
	// KindBusiness marks a recoverable failure. The operation had no effect.
	KindBusiness
	// KindAnomaly marks a condition that was clamped or could not be undone.
	KindAnomaly
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindBusiness:
		return "business"
	case KindAnomaly:
		return "anomaly"
	default:
		return "unknown"
	}
}

// AppError is the single error type returned by the kernel.
type AppError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Kind    Kind   `json:"-"`
	Err     error  `json:"-"` // Wrapped internal cause
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code, so errors.Is works against the constructors below.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError.
func New(code string, message string, kind Kind) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Kind:    kind,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, kind Kind, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Kind:    kind,
		Err:     err,
	}
}

// ---- Configuration (CFG) ----

func ErrUnregisteredAgent(agentID int64) *AppError {
	return New("CFG_001", fmt.Sprintf("agent %d is not registered", agentID), KindConfiguration)
}

func ErrInvalidAmount(amount int64) *AppError {
	return New("CFG_002", fmt.Sprintf("invalid amount %d: minor-unit amounts must be non-negative", amount), KindConfiguration)
}

func ErrMalformedConfig(message string) *AppError {
	return New("CFG_003", message, KindConfiguration)
}

func ErrNotAuthority(agentID int64) *AppError {
	return New("CFG_004", fmt.Sprintf("agent %d holds no money-creation authority", agentID), KindConfiguration)
}

func ErrTickAlreadyReset(tick int64) *AppError {
	return New("CFG_005", fmt.Sprintf("tick flow already reset for tick %d", tick), KindConfiguration)
}

func ErrMissingCollaborator(name string) *AppError {
	return New("CFG_006", fmt.Sprintf("%s is not configured", name), KindConfiguration)
}

func ErrDuplicateAgent(agentID int64) *AppError {
	return New("CFG_007", fmt.Sprintf("agent %d is already registered", agentID), KindConfiguration)
}

// ---- Settlement business failures (SET) ----

func ErrInsufficientFunds(agentID int64, need, have int64) *AppError {
	return New("SET_001", fmt.Sprintf("agent %d has insufficient funds: need %d, have %d", agentID, need, have), KindBusiness)
}

func ErrLegRejected(memo string, err error) *AppError {
	return Wrap("SET_002", fmt.Sprintf("settlement leg %q rejected", memo), KindBusiness, err)
}

func ErrWalletClosed(agentID int64) *AppError {
	return New("SET_003", fmt.Sprintf("wallet of agent %d is closed", agentID), KindBusiness)
}

func ErrSagaFailed(sagaID string, err error) *AppError {
	return Wrap("SET_004", fmt.Sprintf("saga %s failed and was rolled back", sagaID), KindBusiness, err)
}

func ErrLoanRejected(message string) *AppError {
	return New("SET_005", message, KindBusiness)
}

func ErrNotFound(entity string) *AppError {
	return New("SET_006", fmt.Sprintf("%s not found", entity), KindBusiness)
}

func ErrAssetNotHeld(agentID int64, asset string) *AppError {
	return New("SET_007", fmt.Sprintf("agent %d does not hold %s", agentID, asset), KindBusiness)
}

// ---- Anomalies (SYS) ----

func ErrRollbackFailed(err error) *AppError {
	return Wrap("SYS_001", "rollback failed, value may have leaked", KindAnomaly, err)
}

func ErrUnderflow(counter string) *AppError {
	return New("SYS_002", fmt.Sprintf("%s would fall below zero", counter), KindAnomaly)
}

// InternalError wraps an unexpected internal error as a SYS_003 anomaly.
func InternalError(err error) *AppError {
	return Wrap("SYS_003", "internal error", KindAnomaly, err)
}

// KindOf returns the kind of the first AppError in err's chain, or 0.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsConfiguration reports whether err is a fatal setup error.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsBusiness reports whether err is a recoverable business failure.
func IsBusiness(err error) bool {
	return KindOf(err) == KindBusiness
}
