package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/models"
	"github.com/greenstem/pos_backend/utils"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler exchanges credentials for a session token (redis-backed) plus
// a JWT for mobile clients that prefer stateless auth.
func LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondUnauthorized(c, err.Error())
			return
		}

		user, err := models.GetUserByUsername(c.Request.Context(), req.Username)
		if err != nil {
			respondUnauthorized(c, "unknown user")
			return
		}
		jwt, err := utils.JwtGenerate(user.ID, user.VendorId, string(user.Role))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":               info.Token,
			"jwt":                 jwt,
			"name":                info.Name,
			"role":                info.Role,
			"vendor_name":         info.VendorName,
			"license_number":      info.LicenseNumber,
			"primary_location_id": info.PrimaryLocationId,
			"timezone":            info.Timezone,
		})
	}
}

func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logged_out": ok})
	}
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func ChangePasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var req changePasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		user, err := models.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": user.Username, "changed": true})
	}
}

// RegisterVendorHandler provisions a tenant: vendor row, primary location,
// owner login and the default reason catalog in one transaction.
func RegisterVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewVendor
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		vendor, err := models.CreateVendor(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, vendor)
	}
}

func GetVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		vendor, err := models.GetVendor(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	}
}

// BootstrapHandler serves the launch payload: vendor plus reference lists in
// one response, already marshaled by the model layer.
func BootstrapHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		payload, err := models.BootstrapData(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(payload))
	}
}

func UpdateVendorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		var input models.NewVendor
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		vendor, err := models.UpdateVendor(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vendor)
	}
}
