package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/models"
)

func CreateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		product, err := models.CreateProduct(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func UpdateProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewProduct
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		product, err := models.UpdateProduct(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func DeleteProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		product, err := models.DeleteProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func GetProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		product, err := models.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func PaginateProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		limit, ok := intQuery(c, "limit")
		if !ok {
			return
		}
		categoryId, ok := intQuery(c, "category_id")
		if !ok {
			return
		}
		connection, err := models.PaginateProduct(c.Request.Context(), limit, stringQuery(c, "after"),
			stringQuery(c, "name"), stringQuery(c, "sku"), categoryId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, connection)
	}
}

func ListAllProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		products, err := models.ListAllProduct(c.Request.Context(), stringQuery(c, "name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	}
}

// GetProductByBarcodeHandler resolves a scanned barcode to a product. The
// barcode is passed as a path segment so scanner apps can hit it directly.
func GetProductByBarcodeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		barcode := c.Param("barcode")
		if barcode == "" {
			respondError(c, &models.ValidationError{Field: "barcode", Message: "barcode is required"})
			return
		}
		product, err := models.GetProductByBarcode(c.Request.Context(), barcode)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

func ToggleActiveProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var req toggleActiveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		product, err := models.ToggleActiveProduct(c.Request.Context(), id, *req.IsActive)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// ImportProductsHandler accepts a multipart upload of an xlsx workbook and
// bulk-creates products from its rows.
func ImportProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		fileHeader, err := c.FormFile("file")
		if err != nil {
			respondError(c, &models.ValidationError{Field: "file", Message: "xlsx file is required"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			respondError(c, err)
			return
		}
		defer file.Close()

		result, err := models.ImportProductsFromXlsx(c.Request.Context(), fileHeader.Filename, file)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": result})
	}
}
