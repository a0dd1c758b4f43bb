package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/greenstem/pos_backend/models"
)

// User management is admin-only; operators authenticate but never manage
// accounts.

func CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		if !requireAdmin(c) {
			return
		}
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

func ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		if !requireAdmin(c) {
			return
		}
		users, err := models.GetAllUsers(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

func GetUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		if !requireAdmin(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		user, err := models.GetUser(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func UpdateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vendorId, ok := requireVendor(c)
		if !ok {
			return
		}
		if !requireAdmin(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.User
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		if err := models.ValidateLocationIds(c.Request.Context(), vendorId, input.LocationIds); err != nil {
			respondError(c, err)
			return
		}
		input.ID = id
		user, err := input.UpdateUser(id)
		if err != nil {
			respondError(c, err)
			return
		}
		user.PrepareGive()
		c.JSON(http.StatusOK, user)
	}
}

func DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireVendor(c); !ok {
			return
		}
		if !requireAdmin(c) {
			return
		}
		id, ok := idParam(c)
		if !ok {
			return
		}
		var user models.User
		deleted, err := user.DeleteUser(id)
		if err != nil {
			respondError(c, err)
			return
		}
		deleted.PrepareGive()
		c.JSON(http.StatusOK, deleted)
	}
}
