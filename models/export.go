package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/greenstem/pos_backend/utils"
	"github.com/xuri/excelize/v2"
)

const exportMaxRows = 10000

// ExportStockAdjustmentsXlsx renders the audit trail matching the filter into
// a spreadsheet, newest first, capped at exportMaxRows. The caller streams the
// returned file with the xlsx content type.
func ExportStockAdjustmentsXlsx(ctx context.Context, filter *StockAdjustmentFilter) (*excelize.File, string, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, "", errors.New("vendor id is required")
	}
	vendor, err := GetVendorById(ctx, vendorId)
	if err != nil {
		return nil, "", err
	}

	productMap, err := MapAllProduct(ctx)
	if err != nil {
		return nil, "", err
	}
	locationMap, err := MapAllLocation(ctx)
	if err != nil {
		return nil, "", err
	}
	userMap, err := MapAllUser(ctx)
	if err != nil {
		return nil, "", err
	}

	if filter == nil {
		filter = &StockAdjustmentFilter{}
	}
	pageFilter := *filter
	pageFilter.Limit = auditQueryMaxLimit
	pageFilter.Offset = 0

	f := excelize.NewFile()
	sheetName := "Adjustments"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	// Add headers
	headings := []string{"Id", "Date", "Product", "Sku", "Location", "Type",
		"Before", "Change", "After", "Reason", "Notes", "Reference", "Batch", "CreatedBy"}
	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	// Add data
	rowNo := 2
	for rowNo-2 < exportMaxRows {
		page, err := ListStockAdjustments(ctx, &pageFilter)
		if err != nil {
			return nil, "", err
		}
		for _, adjustment := range page.Adjustments {
			productName := ""
			sku := ""
			if p, found := productMap[adjustment.ProductId]; found {
				productName = p.Name
				sku = p.Sku
			}
			locationName := ""
			if l, found := locationMap[adjustment.LocationId]; found {
				locationName = l.Name
			}
			createdBy := ""
			if u, found := userMap[adjustment.CreatedBy]; found {
				createdBy = u.Name
			}
			reference := ""
			if adjustment.ReferenceType != nil && adjustment.ReferenceId != nil {
				reference = fmt.Sprintf("%s:%d", *adjustment.ReferenceType, *adjustment.ReferenceId)
			}
			batchId := ""
			if adjustment.BatchId != nil {
				batchId = *adjustment.BatchId
			}
			notes := ""
			if adjustment.Notes != nil {
				notes = *adjustment.Notes
			}
			localDate := utils.ConvertToLocalTime(adjustment.CreatedAt, vendor.Timezone)

			row := fmt.Sprint(rowNo)
			f.SetCellValue(sheetName, "A"+row, adjustment.ID)
			f.SetCellValue(sheetName, "B"+row, localDate.Format("2006-01-02 15:04:05"))
			f.SetCellValue(sheetName, "C"+row, productName)
			f.SetCellValue(sheetName, "D"+row, sku)
			f.SetCellValue(sheetName, "E"+row, locationName)
			f.SetCellValue(sheetName, "F"+row, string(adjustment.AdjustmentType))
			f.SetCellValue(sheetName, "G"+row, adjustment.QuantityBefore.String())
			f.SetCellValue(sheetName, "H"+row, adjustment.QuantityChange.String())
			f.SetCellValue(sheetName, "I"+row, adjustment.QuantityAfter.String())
			f.SetCellValue(sheetName, "J"+row, adjustment.Reason)
			f.SetCellValue(sheetName, "K"+row, notes)
			f.SetCellValue(sheetName, "L"+row, reference)
			f.SetCellValue(sheetName, "M"+row, batchId)
			f.SetCellValue(sheetName, "N"+row, createdBy)
			rowNo++
		}
		if len(page.Adjustments) < pageFilter.Limit {
			break
		}
		pageFilter.Offset += pageFilter.Limit
	}

	filename := "stock_adjustments_" + utils.ConvertToLocalTime(time.Now().UTC(), vendor.Timezone).Format("20060102") + ".xlsx"
	return f, filename, nil
}

// ExportStockOnHandXlsx renders the current stock on hand snapshot, optionally
// scoped to one location.
func ExportStockOnHandXlsx(ctx context.Context, locationId *int) (*excelize.File, string, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, "", errors.New("vendor id is required")
	}
	vendor, err := GetVendorById(ctx, vendorId)
	if err != nil {
		return nil, "", err
	}

	rows, err := GetStockOnHand(ctx, locationId)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheetName := "StockOnHand"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	// Add headers
	headings := []string{"Product", "Sku", "Unit", "Location", "OnHand", "Committed", "Available"}
	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	// Add data
	for i, d := range rows {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheetName, "A"+row, d.ProductName)
		f.SetCellValue(sheetName, "B"+row, d.Sku)
		f.SetCellValue(sheetName, "C"+row, string(d.Unit))
		f.SetCellValue(sheetName, "D"+row, d.LocationName)
		f.SetCellValue(sheetName, "E"+row, d.QuantityOnHand.String())
		f.SetCellValue(sheetName, "F"+row, d.CommittedQty.String())
		f.SetCellValue(sheetName, "G"+row, d.AvailableQty.String())
	}

	filename := "stock_on_hand_" + utils.ConvertToLocalTime(time.Now().UTC(), vendor.Timezone).Format("20060102") + ".xlsx"
	return f, filename, nil
}
