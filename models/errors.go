package models

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// Error taxonomy for inventory mutations. Handlers map these onto HTTP
// statuses; async workers use IsTransientError to decide retry vs dead-letter.

// ValidationError marks malformed input. Never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidAdjustmentError rejects a change that would drive quantity on hand
// below zero. Carries enough state for the mobile client to show the shortfall.
type InvalidAdjustmentError struct {
	ProductId       int
	LocationId      int
	QuantityOnHand  decimal.Decimal
	RequestedChange decimal.Decimal
}

func (e *InvalidAdjustmentError) Error() string {
	return fmt.Sprintf("adjustment of %s would drive stock below zero (product=%d location=%d on_hand=%s)",
		e.RequestedChange, e.ProductId, e.LocationId, e.QuantityOnHand)
}

// OverReceiptError rejects receiving more units than were ordered on a line.
type OverReceiptError struct {
	ItemId          int
	ProductName     string
	OrderedQty      decimal.Decimal
	AlreadyReceived decimal.Decimal
	RequestedQty    decimal.Decimal
}

func (e *OverReceiptError) Error() string {
	remaining := e.OrderedQty.Sub(e.AlreadyReceived)
	return fmt.Sprintf("cannot receive %s of %s, only %s remaining",
		e.RequestedQty, e.ProductName, remaining)
}

// NotFoundError marks a referenced entity that does not exist for the vendor.
type NotFoundError struct {
	Resource string
	Id       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.Id)
}

// TransientStorageError wraps infrastructure failures (deadlock, lock wait
// timeout, dropped connection) that are safe to retry with the same
// idempotency key.
type TransientStorageError struct {
	Op  string
	Err error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientStorageError) Unwrap() error {
	return e.Err
}

// MySQL server error numbers that indicate a retryable condition.
const (
	mysqlErrLockDeadlock    = 1213
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDuplicateEntry  = 1062
)

// WrapStorageError classifies a gorm/database error. Deadlocks, lock wait
// timeouts and connection drops become TransientStorageError; everything else
// passes through unchanged.
func WrapStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isRetryableDBError(err) {
		return &TransientStorageError{Op: op, Err: err}
	}
	return err
}

func isRetryableDBError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrLockDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

func IsTransientError(err error) bool {
	var transient *TransientStorageError
	return errors.As(err, &transient)
}

// IsDuplicateKeyError reports whether err is a MySQL unique-index violation.
// The adjustment engine relies on this to detect idempotent replays that race
// past the pre-insert lookup.
func IsDuplicateKeyError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	return false
}

// Error kind names shared by the bulk manifest and the HTTP error envelope.
const (
	ErrorKindValidation        = "ValidationError"
	ErrorKindInvalidAdjustment = "InvalidAdjustment"
	ErrorKindOverReceipt       = "OverReceipt"
	ErrorKindNotFound          = "NotFound"
	ErrorKindTransientStorage  = "TransientStorage"
	ErrorKindInternal          = "Internal"
)

// ErrorKind classifies err into the taxonomy name used on the wire.
func ErrorKind(err error) string {
	var (
		validation *ValidationError
		invalid    *InvalidAdjustmentError
		overRcpt   *OverReceiptError
		notFound   *NotFoundError
		transient  *TransientStorageError
	)
	switch {
	case errors.As(err, &validation):
		return ErrorKindValidation
	case errors.As(err, &invalid):
		return ErrorKindInvalidAdjustment
	case errors.As(err, &overRcpt):
		return ErrorKindOverReceipt
	case errors.As(err, &notFound):
		return ErrorKindNotFound
	case errors.As(err, &transient):
		return ErrorKindTransientStorage
	}
	return ErrorKindInternal
}
