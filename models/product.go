package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type Product struct {
	ID          int      `gorm:"primary_key" json:"id"`
	VendorId    string   `gorm:"index;not null" json:"vendor_id" binding:"required"`
	Name        string   `gorm:"size:100;not null" json:"name" binding:"required"`
	Description string   `gorm:"type:text" json:"description"`
	CategoryId  int      `gorm:"index;not null;default:0" json:"category_id"`
	SupplierId  int      `json:"supplier_id"`
	Images      []*Image `gorm:"polymorphic:Reference" json:"-"`
	Sku         string   `gorm:"size:100;not null" json:"sku" binding:"required"`
	Barcode     string   `gorm:"index;size:100" json:"barcode"`
	// Unit is the sellable unit; weight-based units allow fractional quantities.
	Unit           ProductUnit     `gorm:"type:enum('each', 'gram', 'ounce', 'milligram');default:each" json:"unit"`
	Price          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	Cost           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost"`
	TrackInventory *bool           `gorm:"not null;default:true" json:"track_inventory"`
	// TotalStock is the denormalized sum over stock_levels. It is recomputed
	// inside every stock-mutating transaction, never read-modify-written.
	TotalStock decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_stock"`
	IsActive   *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProduct struct {
	Name           string          `json:"name" binding:"required"`
	Description    string          `json:"description"`
	CategoryId     int             `json:"category_id"`
	SupplierId     int             `json:"supplier_id"`
	Images         []*NewImage     `json:"image_urls"`
	Sku            string          `json:"sku" binding:"required"`
	Barcode        string          `json:"barcode"`
	Unit           ProductUnit     `json:"unit"`
	Price          decimal.Decimal `json:"price"`
	Cost           decimal.Decimal `json:"cost"`
	TrackInventory *bool           `json:"track_inventory"`
}

type ProductsEdge Edge[Product]

type ProductsConnection struct {
	PageInfo *PageInfo
	Edges    []*ProductsEdge
}

type AllProduct struct {
	HasId
	Name           string          `json:"name"`
	Sku            string          `json:"sku"`
	Barcode        string          `json:"barcode"`
	Unit           ProductUnit     `json:"unit"`
	Price          decimal.Decimal `json:"price"`
	Cost           decimal.Decimal `json:"cost"`
	TotalStock     decimal.Decimal `json:"total_stock"`
	TrackInventory bool            `json:"track_inventory"`
	IsActive       bool            `json:"isActive"`
}

// implements Node
func (p Product) GetCursor() string {
	return p.CreatedAt.String()
}

// validate input for both create & update. (id = 0 for create)

func (input *NewProduct) validate(ctx context.Context, vendorId string, id int) error {
	if err := utils.ValidateUnique[Product](ctx, vendorId, "name", input.Name, id); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Product](ctx, vendorId, "sku", input.Sku, id); err != nil {
		return err
	}
	// exists category
	if input.CategoryId > 0 {
		if err := utils.ValidateResourceId[ProductCategory](ctx, vendorId, input.CategoryId); err != nil {
			return errors.New("product category not found")
		}
	}

	// exists supplier
	if input.SupplierId > 0 {
		if err := utils.ValidateResourceId[Supplier](ctx, vendorId, input.SupplierId); err != nil {
			return errors.New("supplier not found")
		}
	}
	return nil
}

func CreateProduct(ctx context.Context, input *NewProduct) (*Product, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	// validate product
	if err := input.validate(ctx, vendorId, 0); err != nil {
		return nil, err
	}

	// construct Images
	images, err := mapNewImages(input.Images, "products", 0)
	if err != nil {
		return nil, err
	}

	unit := input.Unit
	if unit == "" {
		unit = ProductUnitEach
	}
	trackInventory := input.TrackInventory
	if trackInventory == nil {
		trackInventory = utils.NewTrue()
	}

	// store product
	product := Product{
		VendorId:       vendorId,
		Name:           input.Name,
		Description:    input.Description,
		CategoryId:     input.CategoryId,
		SupplierId:     input.SupplierId,
		Sku:            input.Sku,
		Barcode:        input.Barcode,
		Unit:           unit,
		Price:          input.Price,
		Cost:           input.Cost,
		TrackInventory: trackInventory,
		IsActive:       utils.NewTrue(),
		// asssociation
		Images: images,
	}

	db := config.GetDB()
	tx := db.Begin()

	err = tx.WithContext(ctx).Create(&product).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	return &product, nil
}

func UpdateProduct(ctx context.Context, id int, input *NewProduct) (*Product, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	// id exists
	product, err := utils.FetchModel[Product](ctx, vendorId, id)
	if err != nil {
		return nil, err
	}
	// validate product
	if err := input.validate(ctx, vendorId, id); err != nil {
		return nil, err
	}

	db := config.GetDB()

	// stock rows pin inventory tracking on
	if input.TrackInventory != nil && !*input.TrackInventory {
		var count int64
		if err := db.WithContext(ctx).Model(&StockLevel{}).
			Where("product_id = ?", id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, errors.New("cannot disable inventory tracking as stock(s) exist")
		}
	}

	tx := db.Begin()

	err = tx.WithContext(ctx).Model(&product).Updates(map[string]interface{}{
		"Name":           input.Name,
		"Description":    input.Description,
		"CategoryId":     input.CategoryId,
		"SupplierId":     input.SupplierId,
		"Sku":            input.Sku,
		"Barcode":        input.Barcode,
		"Unit":           input.Unit,
		"Price":          input.Price,
		"Cost":           input.Cost,
		"TrackInventory": input.TrackInventory,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if len(input.Images) > 0 {
		images, err := UpsertImages(ctx, tx, input.Images, "products", id)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		product.Images = images
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return product, nil
}

func DeleteProduct(ctx context.Context, id int) (*Product, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	result, err := utils.FetchModel[Product](ctx, vendorId, id, "Images")
	if err != nil {
		return nil, err
	}

	count, err := utils.ResourceCountWhere[StockLevel](ctx, "", "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("stock already exists")
	}
	count, err = utils.ResourceCountWhere[StockAdjustment](ctx, "", "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("adjustment history already exists")
	}
	count, err = utils.ResourceCountWhere[PurchaseOrderItem](ctx, "", "product_id = ?", id)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("transaction already exists")
	}

	// db action
	db := config.GetDB()
	tx := db.Begin()

	for _, img := range result.Images {
		if err := img.Delete(tx, ctx); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	err = tx.WithContext(ctx).Delete(&result).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return result, nil
}

func GetProduct(ctx context.Context, id int) (*Product, error) {
	return GetResource[Product](ctx, id)
}

func GetProducts(ctx context.Context, name *string) ([]*Product, error) {
	db := config.GetDB()
	var results []*Product

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)
	if name != nil && len(*name) > 0 {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	err := dbCtx.Order("name").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// look up a product by its scan code
func GetProductByBarcode(ctx context.Context, barcode string) (*Product, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	db := config.GetDB()
	var result Product
	err := db.WithContext(ctx).
		Where("vendor_id = ? AND barcode = ?", vendorId, barcode).
		First(&result).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &result, nil
}

func ToggleActiveProduct(ctx context.Context, id int, isActive bool) (*Product, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}

	return ToggleActiveModel[Product](ctx, vendorId, id, isActive)
}

func PaginateProduct(ctx context.Context, limit *int, after *string, name *string, sku *string, categoryId *int) (*ProductsConnection, error) {

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	pageSize := config.SearchLimit
	if limit != nil && *limit > 0 {
		pageSize = *limit
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db := config.GetDB()
	dbCtx := db.WithContext(ctxWithTimeout).Model(&Product{}).Where("vendor_id = ?", vendorId)

	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}
	if sku != nil && *sku != "" {
		dbCtx.Where("sku = ?", *sku)
	}
	if categoryId != nil && *categoryId > 0 {
		dbCtx.Where("category_id = ?", *categoryId)
	}

	edges, pageInfo, err := FetchPageCompositeCursor[Product](dbCtx, pageSize, after, "created_at", "<")
	if err != nil {
		return nil, err
	}

	var productConnection ProductsConnection
	productConnection.PageInfo = pageInfo
	for _, edge := range edges {
		productEdge := ProductsEdge(edge)
		productConnection.Edges = append(productConnection.Edges, &productEdge)
	}

	return &productConnection, nil
}

func ListAllProduct(ctx context.Context, name *string) ([]*AllProduct, error) {
	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return nil, errors.New("vendor id is required")
	}
	var allProducts []*AllProduct
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("vendor_id = ?", vendorId)

	if name != nil && *name != "" {
		dbCtx.Where("name LIKE ?", "%"+*name+"%")
	}

	if err := dbCtx.Model(&Product{}).
		Find(&allProducts).Error; err != nil {
		return nil, err
	}
	return allProducts, nil
}

func MapAllProduct(ctx context.Context) (map[int]*AllProduct, error) {
	return MapAllModel[Product, AllProduct](ctx)
}

type ImportRow struct {
	Name         string
	Description  string
	CategoryName string
	Sku          string
	Barcode      string
	Unit         string
	Price        decimal.Decimal
	Cost         decimal.Decimal
}

func validateImportData(rows [][]string) error {
	for idx, row := range rows[1:] {
		importRow, err := PopulateImportRow(row)
		if err != nil {
			return fmt.Errorf("error in row %d: %v", idx+2, err)
		}

		if len(importRow.Name) == 0 {
			return fmt.Errorf("product name is null in row %d", idx+2)
		}
		if len(importRow.Sku) == 0 {
			return fmt.Errorf("sku is null in row %d", idx+2)
		}
		if len(importRow.CategoryName) == 0 {
			return fmt.Errorf("category name is null in row %d", idx+2)
		}
		switch ProductUnit(importRow.Unit) {
		case ProductUnitEach, ProductUnitGram, ProductUnitOunce, ProductUnitMilligram:
		default:
			return fmt.Errorf("invalid unit in row %d: %v", idx+2, importRow.Unit)
		}
	}
	return nil
}

func uploadImportFile(ctx context.Context, fileName string, file io.Reader) (string, error) {
	objectName := "importProducts/" + fileName
	err := utils.UploadFileToGCS(ctx, objectName, file)
	if err != nil {
		return "", fmt.Errorf("failed to upload file to storage provider: %v", err)
	}
	return getCloudURL(objectName), nil
}

func readExcelFileFromURL(fileURL string) (*excelize.File, error) {
	// Download file content from the given URL
	resp, err := http.Get(fileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download file from URL: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: received status code %d", resp.StatusCode)
	}

	// Create an Excel reader
	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %v", err)
	}

	return f, nil
}

// ImportProductsFromXlsx creates catalog rows from a spreadsheet. Stock is not
// imported; quantities arrive through adjustments and receiving.
func ImportProductsFromXlsx(ctx context.Context, filename string, file io.Reader) (string, error) {
	if file == nil {
		return "", errors.New("nil file provided")
	}

	if !strings.HasSuffix(filename, ".xlsx") {
		return "", fmt.Errorf("invalid file type: only .xlsx files are allowed")
	}

	vendorId, ok := utils.GetVendorIdFromContext(ctx)
	if !ok || vendorId == "" {
		return "", errors.New("vendor id is required")
	}

	uniqueFilename := vendorId + "_" + utils.GenerateUniqueFilename() + "_*.xlsx"

	fileURL, err := uploadImportFile(ctx, uniqueFilename, file)
	if err != nil {
		return "", err
	}

	f, err := readExcelFileFromURL(fileURL)
	if err != nil {
		return "", err
	}

	rows, err := f.GetRows("Sheet1")
	if err != nil {
		return "", fmt.Errorf("unable to read sheet: %v", err)
	}
	if len(rows) < 2 {
		return "", errors.New("no data rows found")
	}

	err = validateImportData(rows)
	if err != nil {
		return "", err
	}

	release, err := utils.VendorLock(ctx, vendorId, "lock", "product.go", "ImportProductsFromXlsx")
	if err != nil {
		return "", err
	}
	defer release()

	db := config.GetDB()
	tx := db.Begin()

	duplicateRows := make([]string, 0)

	for idx, row := range rows[1:] {

		importRow, err := PopulateImportRow(row)
		if err != nil {
			tx.Rollback()
			return "", err
		}

		// Check for existing products by name or SKU
		var existingProduct Product
		err = tx.WithContext(ctx).Where("vendor_id = ? AND (name = ? OR sku = ?)", vendorId, importRow.Name, importRow.Sku).First(&existingProduct).Error
		if err == nil {
			// Product already exists, skip this row
			duplicateRows = append(duplicateRows, fmt.Sprintf("Row %d: Duplicate found for product with Name: %s", idx+2, importRow.Name))
			continue
		} else if err != gorm.ErrRecordNotFound {
			tx.Rollback()
			return "", fmt.Errorf("error checking for duplicates in row %d: %v", idx+2, err)
		}

		// Find or create category
		category, err := FindOrCreateCategory(ctx, tx, vendorId, importRow.CategoryName)
		if err != nil {
			tx.Rollback()
			return "", err
		}

		product := Product{
			VendorId:       vendorId,
			Name:           importRow.Name,
			Description:    importRow.Description,
			CategoryId:     category.ID,
			Sku:            importRow.Sku,
			Barcode:        importRow.Barcode,
			Unit:           ProductUnit(importRow.Unit),
			Price:          importRow.Price,
			Cost:           importRow.Cost,
			TrackInventory: utils.NewTrue(),
			IsActive:       utils.NewTrue(),
		}

		if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
			tx.Rollback()
			return "err", fmt.Errorf("could not create product: %v", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return "err", err
	}

	if len(duplicateRows) > 0 {
		return fmt.Sprintf("imported successfully with duplicates: %v", duplicateRows), nil
	}

	return "imported successfully", nil
}

func PopulateImportRow(row []string) (ImportRow, error) {
	if len(row) < 8 {
		return ImportRow{}, errors.New("row has too few columns")
	}

	price, err := utils.ParseDecimal(row[6])
	if err != nil {
		return ImportRow{}, fmt.Errorf("could not parse price: %v", err)
	}

	cost, err := utils.ParseDecimal(row[7])
	if err != nil {
		return ImportRow{}, fmt.Errorf("could not parse cost: %v", err)
	}

	importRow := ImportRow{
		Name:         row[0],
		Description:  row[1],
		CategoryName: row[2],
		Sku:          row[3],
		Barcode:      row[4],
		Unit:         row[5],
		Price:        price,
		Cost:         cost,
	}

	return importRow, nil
}

func FindOrCreateCategory(ctx context.Context, tx *gorm.DB, vendorId, categoryName string) (ProductCategory, error) {
	var category ProductCategory
	err := tx.WithContext(ctx).Where("vendor_id = ? AND name = ?", vendorId, categoryName).First(&category).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return category, fmt.Errorf("error finding category: %v", err)
	}

	if err == gorm.ErrRecordNotFound {
		category = ProductCategory{
			VendorId: vendorId,
			Name:     categoryName,
			IsActive: utils.NewTrue(),
		}
		if err := tx.WithContext(ctx).Create(&category).Error; err != nil {
			return category, fmt.Errorf("could not create category: %v", err)
		}
	}

	return category, nil
}
