package models

import (
	"context"
	"encoding/json"
	"errors"

	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"gorm.io/gorm"
)

// History records who changed what. Distinct from StockAdjustment: this is the
// operator activity log, not the quantity audit trail.
type History struct {
	ID            int       `gorm:"primary_key" json:"id"`
	VendorId      string    `gorm:"index;not null" json:"vendor_id"`
	ActionType    string    `gorm:"size:10;not null" json:"action_type" binding:"required"`
	Before        string    `gorm:"type:text" json:"before"`
	After         string    `gorm:"type:text" json:"after"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	ReferenceID   int       `gorm:"index" json:"reference_id"`
	ReferenceType string    `gorm:"size:255" json:"reference_type"`
	UserId        int       `gorm:"index;not null" json:"user_id"`
	UserName      string    `gorm:"size:100" json:"user_name"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func createHistory(tx *gorm.DB,
	actionType string,
	referenceId int,
	referenceType string,
	before interface{},
	after interface{},
	description string) (err error) {

	var history History

	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)

	ctx := tx.Statement.Context
	// get vendorId, userId, userName from context
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return errors.New("vendor id is required")
	}
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return errors.New("user id is required")
	}
	userName, ok := utils.GetUserNameFromContext(ctx)
	if !ok {
		return errors.New("user name is required")
	}

	history.VendorId = vendorId
	history.ActionType = actionType
	history.Before = string(b)
	history.After = string(a)
	history.Description = description
	history.ReferenceID = referenceId
	history.ReferenceType = referenceType
	history.UserId = userId
	history.UserName = userName

	err = tx.Create(&history).Error
	return err
}

func SaveHistoryCreate(tx *gorm.DB, id int, obj interface{}, description string) error {
	return createHistory(tx, "CREATE", id, tx.Statement.Table, nil, obj, description)
}

func SaveHistoryUpdate(tx *gorm.DB, id int, currentValue interface{}, description string) error {

	var newValue = tx.Statement.Dest

	return createHistory(tx, "UPDATE", id, tx.Statement.Table, currentValue, newValue, description)
}

func SaveHistoryDelete(tx *gorm.DB, id int, obj interface{}, description string) error {
	return createHistory(tx, "DELETE", id, tx.Statement.Table, obj, nil, description)
}

type HistoriesConnection struct {
	Edges    []*HistoriesEdge `json:"edges"`
	PageInfo *PageInfo        `json:"pageInfo"`
}

type HistoriesEdge Edge[History]

func (obj History) GetId() int {
	return obj.ID
}

func (h History) GetCursor() string {
	return h.CreatedAt.String()
}

func GetHistories(ctx context.Context, referenceId *int, referenceType *string, userId *int) ([]*History, error) {

	db := config.GetDB()
	var results []*History

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	if referenceId != nil && *referenceId > 0 {
		dbCtx = dbCtx.Where("reference_id = ?", referenceId)
	}
	if referenceType != nil && len(*referenceType) > 0 {
		dbCtx = dbCtx.Where("reference_type = ?", referenceType)
	}
	if userId != nil && *userId > 0 {
		dbCtx = dbCtx.Where("user_id = ?", userId)
	}
	err := dbCtx.Order("created_at DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func PaginateHistory(ctx context.Context,
	limit *int,
	after *string,
	referenceType *string,
	referenceID *int,
	userID *int,
	actionType *string,
) (*HistoriesConnection, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	pageSize := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageSize = *limit
	}

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	if referenceType != nil && *referenceType != "" {
		dbCtx.Where("reference_type = ?", *referenceType)
	}
	if referenceID != nil && *referenceID > 0 {
		dbCtx.Where("reference_id = ?", *referenceID)
	}
	if userID != nil && *userID > 0 {
		dbCtx.Where("user_id = ?", *userID)
	}
	if actionType != nil && *actionType != "" {
		dbCtx.Where("action_type = ?", *actionType)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[History](dbCtx, pageSize, after, "created_at", "<")
	if err != nil {
		return nil, err
	}
	var historiesConnection HistoriesConnection
	historiesConnection.PageInfo = pageInfo
	for _, edge := range edges {
		historiesEdge := HistoriesEdge(edge)
		historiesConnection.Edges = append(historiesConnection.Edges, &historiesEdge)
	}

	return &historiesConnection, err
}
