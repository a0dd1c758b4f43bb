package utils

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/greenstem/pos_backend/config"
	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "US"

func IsValidEmail(email string) bool {
	// Basic email validation regex pattern
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err // Phone number is invalid
	}

	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}

	return nil // Phone number is valid for the specified country code
}

// FormatPhoneNumber normalizes a phone number to E.164 ("+14155550123").
// Returns the input unchanged when it cannot be parsed.
func FormatPhoneNumber(phoneNumber, countryCode string) string {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return phoneNumber
	}
	return libphonenumber.Format(p, libphonenumber.E164)
}

func GenerateUniqueFilename() string {

	timestamp := time.Now().UnixNano()

	random := rand.Intn(1000)

	uniqueFilename := fmt.Sprintf("%d_%d", timestamp, random)

	return uniqueFilename
}

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func ConvertToLocalTime(utcTime time.Time, timezone string) time.Time {
	//init the loc
	loc, _ := time.LoadLocation(timezone)
	//set timezone,
	return utcTime.In(loc)
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			// if not exists in map, append it, otherwise do nothing
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

func NilIfEmpty[T comparable](ptr T) *T {
	var defaultZero T
	if ptr == defaultZero {
		return nil
	}
	return &ptr
}

func ConvertToDate(t time.Time, timezone string) (time.Time, error) {
	if timezone == "" {
		timezone = "America/Denver"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return t, err
	}
	localTime := t.In(location)

	// Extract only the date (without time) by using localTime.Year, Month, Day
	// We then create a new time.Time object with zero time.
	dateOnly := time.Date(localTime.Year(), localTime.Month(), localTime.Day(), 0, 0, 0, 0, location)
	return dateOnly, nil
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	// Remove any whitespace and check for empty strings
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	// Convert string to decimal
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// VendorLock obtains a redis lock scoped to one vendor. The caller must invoke
// the returned release func (normally via defer) when the critical section ends.
func VendorLock(ctx context.Context, vendorId string, lockType string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", vendorId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	// Try to obtain a lock for the vendorId
	lockKey := fmt.Sprintf("%s:%s", lockType, vendorId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		// Handle the case where the lock could not be obtained
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for vendorId", vendorId, err)
		return nil, errors.New("could not obtain lock for vendorId")
	} else if err != nil {
		// Handle other errors in obtaining the lock
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for vendorId", vendorId, err)
		return nil, err
	}

	release := func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}
	return release, nil
}
