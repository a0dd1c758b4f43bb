package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"time"
)

type AdjustmentType string

const (
	AdjustmentTypeCountCorrection AdjustmentType = "count_correction"
	AdjustmentTypeDamage          AdjustmentType = "damage"
	AdjustmentTypeShrinkage       AdjustmentType = "shrinkage"
	AdjustmentTypeTheft           AdjustmentType = "theft"
	AdjustmentTypeExpired         AdjustmentType = "expired"
	AdjustmentTypeReceived        AdjustmentType = "received"
	AdjustmentTypeReturn          AdjustmentType = "return"
	AdjustmentTypeOther           AdjustmentType = "other"
)

// convert enum to send response
func (t AdjustmentType) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(t))), nil
}

// convert input to enum type
func (t *AdjustmentType) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("adjustment type must be string")
	}

	adjustmentTypes := map[string]AdjustmentType{
		"count_correction": AdjustmentTypeCountCorrection,
		"damage":           AdjustmentTypeDamage,
		"shrinkage":        AdjustmentTypeShrinkage,
		"theft":            AdjustmentTypeTheft,
		"expired":          AdjustmentTypeExpired,
		"received":         AdjustmentTypeReceived,
		"return":           AdjustmentTypeReturn,
		"other":            AdjustmentTypeOther,
	}

	var ok bool
	*t, ok = adjustmentTypes[str]
	if !ok {
		return errors.New("invalid adjustment type")
	}
	return nil
}

func (t AdjustmentType) IsValid() bool {
	switch t {
	case AdjustmentTypeCountCorrection, AdjustmentTypeDamage, AdjustmentTypeShrinkage,
		AdjustmentTypeTheft, AdjustmentTypeExpired, AdjustmentTypeReceived,
		AdjustmentTypeReturn, AdjustmentTypeOther:
		return true
	}
	return false
}

type OrderType string

const (
	OrderTypeInbound  OrderType = "inbound"
	OrderTypeOutbound OrderType = "outbound"
)

func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(t))), nil
}

func (t *OrderType) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("order type must be string")
	}
	switch str {
	case "inbound":
		*t = OrderTypeInbound
	case "outbound":
		*t = OrderTypeOutbound
	default:
		return errors.New("invalid order type")
	}
	return nil
}

func (t OrderType) IsValid() bool {
	return t == OrderTypeInbound || t == OrderTypeOutbound
}

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft             PurchaseOrderStatus = "draft"
	PurchaseOrderStatusPending           PurchaseOrderStatus = "pending"
	PurchaseOrderStatusPartiallyReceived PurchaseOrderStatus = "partially_received"
	PurchaseOrderStatusReceived          PurchaseOrderStatus = "received"
	PurchaseOrderStatusCancelled         PurchaseOrderStatus = "cancelled"
)

func (s PurchaseOrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(s))), nil
}

func (s *PurchaseOrderStatus) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("purchase order status must be string")
	}

	purchaseOrderStatus := map[string]PurchaseOrderStatus{
		"draft":              PurchaseOrderStatusDraft,
		"pending":            PurchaseOrderStatusPending,
		"partially_received": PurchaseOrderStatusPartiallyReceived,
		"received":           PurchaseOrderStatusReceived,
		"cancelled":          PurchaseOrderStatusCancelled,
	}

	var ok bool
	*s, ok = purchaseOrderStatus[str]
	if !ok {
		return errors.New("invalid purchase order status")
	}
	return nil
}

func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusDraft, PurchaseOrderStatusPending,
		PurchaseOrderStatusPartiallyReceived, PurchaseOrderStatusReceived,
		PurchaseOrderStatusCancelled:
		return true
	}
	return false
}

type ItemCondition string

const (
	ItemConditionGood     ItemCondition = "good"
	ItemConditionDamaged  ItemCondition = "damaged"
	ItemConditionExpired  ItemCondition = "expired"
	ItemConditionRejected ItemCondition = "rejected"
)

func (c ItemCondition) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(c))), nil
}

func (c *ItemCondition) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("item condition must be string")
	}

	itemConditions := map[string]ItemCondition{
		"good":     ItemConditionGood,
		"damaged":  ItemConditionDamaged,
		"expired":  ItemConditionExpired,
		"rejected": ItemConditionRejected,
	}

	var ok bool
	*c, ok = itemConditions[str]
	if !ok {
		return errors.New("invalid item condition")
	}
	return nil
}

func (c ItemCondition) IsValid() bool {
	switch c {
	case ItemConditionGood, ItemConditionDamaged, ItemConditionExpired, ItemConditionRejected:
		return true
	}
	return false
}

type ProductUnit string

const (
	ProductUnitEach      ProductUnit = "each"
	ProductUnitGram      ProductUnit = "gram"
	ProductUnitOunce     ProductUnit = "ounce"
	ProductUnitMilligram ProductUnit = "milligram"
)

func (u ProductUnit) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(u))), nil
}

func (u *ProductUnit) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("product unit must be string")
	}

	productUnits := map[string]ProductUnit{
		"each":      ProductUnitEach,
		"gram":      ProductUnitGram,
		"ounce":     ProductUnitOunce,
		"milligram": ProductUnitMilligram,
	}

	var ok bool
	*u, ok = productUnits[str]
	if !ok {
		return errors.New("invalid product unit")
	}
	return nil
}

type PubSubMessageAction string

const (
	PubSubMessageActionCreate PubSubMessageAction = "C"
	PubSubMessageActionUpdate PubSubMessageAction = "U"
	PubSubMessageActionDelete PubSubMessageAction = "D"
)

// convert enum to send response
func (t PubSubMessageAction) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(t))), nil
}

// convert input to enum type
func (t *PubSubMessageAction) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("pub sub message action must be string")
	}
	switch str {
	case "C":
		*t = PubSubMessageActionCreate
	case "U":
		*t = PubSubMessageActionUpdate
	case "D":
		*t = PubSubMessageActionDelete
	default:
		return errors.New("invalid pub sub message action")
	}
	return nil
}

// EventReferenceType identifies the entity a message or audit row points at.
type EventReferenceType string

const (
	EventReferenceTypeStockAdjustment EventReferenceType = "ADJ"
	EventReferenceTypePurchaseOrder   EventReferenceType = "PO"
	EventReferenceTypeStockLevel      EventReferenceType = "STK"
	EventReferenceTypeProduct         EventReferenceType = "PRD"
)

func (t EventReferenceType) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(t))), nil
}

func (t *EventReferenceType) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("event reference type must be string")
	}

	eventReferenceTypes := map[string]EventReferenceType{
		"ADJ": EventReferenceTypeStockAdjustment,
		"PO":  EventReferenceTypePurchaseOrder,
		"STK": EventReferenceTypeStockLevel,
		"PRD": EventReferenceTypeProduct,
	}

	var ok bool
	*t, ok = eventReferenceTypes[str]
	if !ok {
		return errors.New("invalid event reference type")
	}
	return nil
}

type UserRole string

const (
	UserRoleAdmin    UserRole = "A"
	UserRoleOwner    UserRole = "O"
	UserRoleOperator UserRole = "C"
)

func (p UserRole) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(string(p))), nil
}

func (p *UserRole) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("user role must be string")
	}

	userRole := map[string]UserRole{
		"A": UserRoleAdmin,
		"O": UserRoleOwner,
		"C": UserRoleOperator,
	}

	var ok bool
	*p, ok = userRole[str]
	if !ok {
		return errors.New("invalid user role")
	}
	return nil
}

type MyDateString time.Time

func (t MyDateString) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Time(t).Format("2006-01-02T15:04:05"))), nil
}

// Parse the string into time.Time object
func (t *MyDateString) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("date must be string")
	}

	// Parse the date string into a time.Time object
	localTime, err := time.Parse("2006-01-02T15:04:05", str)
	if err != nil {
		return errors.New("error parsing datetime")
	}
	*t = MyDateString(localTime)

	return nil
}

func (t *MyDateString) StartOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "America/Denver"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	// Convert the start of the day local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		0, 0, 0, 0,
		location,
	)

	// Convert the time to UTC
	utcTime := localTimeInZone.In(time.UTC)
	*t = MyDateString(utcTime)

	return nil
}

func (t *MyDateString) EndOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "America/Denver"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	// Convert the end of the day local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		23, 59, 59, 999, // Max nanoseconds
		location,
	)

	// Convert the time to UTC
	utcTime := localTimeInZone.In(time.UTC)
	*t = MyDateString(utcTime)

	return nil
}

func (t *MyDateString) UTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = "America/Denver"
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	// Convert the local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		localTime.Hour(), localTime.Minute(), localTime.Second(), localTime.Nanosecond(),
		location,
	)

	// Convert the time to UTC
	utcTime := localTimeInZone.In(time.UTC)
	*t = MyDateString(utcTime)

	return nil
}

// Value implements the driver.Valuer interface
func (t MyDateString) Value() (driver.Value, error) {
	return time.Time(t), nil
}

// Scan implements the sql.Scanner interface
func (t *MyDateString) Scan(value interface{}) error {
	if value == nil {
		*t = MyDateString(time.Time{})
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*t = MyDateString(v)
	default:
		return fmt.Errorf("cannot convert %T to MyDateString", value)
	}
	return nil
}

func (t *MyDateString) SetDefaultNowIfNil() *MyDateString {
	if t == nil {
		now := MyDateString(time.Now())
		return &now
	}
	return t
}
