package models

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/greenstem/pos_backend/config"
	"github.com/greenstem/pos_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID       int      `gorm:"primary_key" json:"id"`
	VendorId string   `gorm:"index" json:"vendor_id"`
	Username string   `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name     string   `gorm:"size:100;not null" json:"name" binding:"required"`
	Email    *string  `gorm:"size:100;unique" json:"email"`
	Phone    string   `gorm:"size:20" json:"phone"`
	ImageUrl string   `json:"image_url"`
	Password string   `gorm:"size:255;not null" json:"password"`
	IsActive *bool    `gorm:"not null" json:"is_active"`
	Role     UserRole `gorm:"type:enum('A', 'O', 'C');default:C" json:"role"`
	// LocationIds limits an operator to specific stores; empty means all.
	LocationIds string    `json:"location_ids"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	VendorId    string   `json:"vendor_id"`
	Username    string   `json:"username" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	ImageUrl    string   `json:"image_url"`
	Password    string   `json:"password" binding:"required"`
	IsActive    *bool    `json:"is_active" binding:"required"`
	Role        UserRole `json:"role" binding:"required"`
	LocationIds string   `json:"location_ids"`
}

/*
caches:
	User:$username
	Token:$token
	Tokens:$username
*/

func (user User) RemoveInstanceRedis() error {
	if err := config.RemoveRedisKey("User:" + user.Username); err != nil {
		return err
	}
	return nil
}

type LoginInfo struct {
	Token             string `json:"token"`
	Name              string `json:"name"`
	Role              string `json:"role"`
	VendorName        string `json:"vendor_name"`
	LicenseNumber     string `json:"license_number"`
	PrimaryLocationId int    `json:"primary_location_id"`
	Timezone          string `json:"timezone"`
}

func (result *User) PrepareGive() {
	result.Password = ""
}

func (role UserRole) DisplayName() string {
	switch role {
	case UserRoleAdmin:
		return "Admin"
	case UserRoleOwner:
		return "Owner"
	default:
		return "Operator"
	}
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	err := config.RemoveRedisKey("Token:" + fmt.Sprint(token))
	if err != nil {
		return false, nil
	}
	// remove current token from tokens list
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return false, errors.New("user not found")
	}
	if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
		return false, err
	}
	return true, nil
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var err error
	var result LoginInfo

	user := User{}

	// get User info
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return &result, err
	}
	if !exists {
		err = db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error

		if err != nil {
			return &result, errors.New("invalid username or password")
		}
	}

	// check login credentials
	err = utils.ComparePassword(user.Password, password)

	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return &result, errors.New("invalid username or password")
	}

	isActive := *user.IsActive
	if !isActive {
		return &result, errors.New("user is disabled")
	}

	// generate token & response
	token := uuid.New()
	result.Token = token.String()
	result.Name = user.Username
	result.Role = user.Role.DisplayName()
	if user.Role != UserRoleAdmin {
		var vendor Vendor
		if err := db.WithContext(ctx).Model(&Vendor{}).Where("id = ?", user.VendorId).First(&vendor).Error; err != nil {
			return nil, err
		}
		if !*vendor.IsActive {
			return &result, errors.New("vendor is disabled")
		}
		result.VendorName = vendor.Name
		result.LicenseNumber = vendor.LicenseNumber
		result.PrimaryLocationId = vendor.PrimaryLocationId
		result.Timezone = vendor.Timezone
	}

	// store token in redis
	token_lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		return &result, err
	}

	// add new token to the user's tokens set
	if err := config.AddRedisSet("Tokens:"+user.Username, token.String()); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+token.String(), user.Username, time.Duration(token_lifespan)*time.Hour); err != nil {
		return &result, err
	}

	return &result, nil
}

// retrieve user from redis or db, caching on miss
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}

	if !exists {

		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return nil, err
		}

		token_lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
		if err != nil {
			return nil, err
		}

		if err := config.SetRedisObject("User:"+user.Username, &user, time.Duration(token_lifespan)*time.Hour); err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func GetAllUsers(ctx context.Context) ([]*User, error) {

	db := config.GetDB()
	var results []*User

	if err := db.WithContext(ctx).Find(&results).Error; err != nil {
		return results, errors.New("no user")
	}

	for i, u := range results {
		u.Password = ""
		results[i] = u
	}

	return results, nil
}

// ValidateLocationIds checks a comma list of location ids ("1,4,7") against
// the vendor's stores. Empty input is valid and means all stores.
func ValidateLocationIds(ctx context.Context, vendorId string, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" || vendorId == "" {
		return nil
	}
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return &ValidationError{Field: "location_ids", Message: "must be a comma separated list of integers"}
		}
		ids = append(ids, id)
	}
	return utils.MassValidateResourceIds(ctx, []utils.ValidationRule[int]{
		{Model: Location{}, Ids: ids, Message: "one or more locations not found",
			Filter: utils.Filter{Cond: "vendor_id = ?", Values: []interface{}{vendorId}}},
	})
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	db := config.GetDB()
	var count int64

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return &User{}, errors.New("invalid email address")
	}

	// the authenticated vendor wins over whatever the request body carries
	if vendorId, ok := utils.GetVendorIdFromContext(ctx); ok && vendorId != "" {
		input.VendorId = vendorId
	}
	if err := ValidateLocationIds(ctx, input.VendorId, input.LocationIds); err != nil {
		return &User{}, err
	}

	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", input.Username).Or("email = ?", input.Email).Count(&count).Error
	if err != nil {
		return &User{}, err
	}
	if count > 0 {
		return &User{}, errors.New("duplicate username or email")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return &User{}, err
	}
	input.Email = strings.ToLower(input.Email)

	user := User{
		Username:    html.EscapeString(strings.TrimSpace(input.Username)),
		VendorId:    input.VendorId,
		Name:        input.Name,
		Email:       utils.NilIfEmpty(input.Email),
		Phone:       input.Phone,
		ImageUrl:    input.ImageUrl,
		Password:    string(hashedPassword),
		IsActive:    input.IsActive,
		Role:        input.Role,
		LocationIds: input.LocationIds,
	}

	err = db.WithContext(ctx).Create(&user).Error
	if err != nil {
		return &User{}, err
	}
	user.Password = ""
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {

	db := config.GetDB()
	var result User

	err := db.WithContext(ctx).First(&result, id).Error

	if err != nil {
		return &result, utils.ErrorRecordNotFound
	}

	result.PrepareGive()

	return &result, nil
}

func (input *User) UpdateUser(id int) (*User, error) {

	db := config.GetDB()
	var count int64

	err := db.Model(&User{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return &User{}, err
	}
	if count <= 0 {
		return nil, utils.ErrorRecordNotFound
	}

	if err = db.Model(&User{}).
		Where("username = ? OR email = ?", input.Username, input.Email).
		Not("id = ?", id).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return &User{}, errors.New("duplicate email or username")
	}

	err = db.Model(&input).Updates(User{Name: input.Name, Email: input.Email, Username: input.Username, IsActive: input.IsActive, LocationIds: input.LocationIds}).Error
	if err != nil {
		return &User{}, err
	}

	if err := input.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	return input, nil
}

func (input *User) DeleteUser(id int) (*User, error) {

	db := config.GetDB()

	err := db.Model(&User{}).Where("id = ?", id).First(&input).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}

	err = db.Delete(&input).Error
	if err != nil {
		return &User{}, err
	}

	if err := input.RemoveInstanceRedis(); err != nil {
		return nil, err
	}
	return input, nil
}

func (user *User) DestroyAllSessions(ctx context.Context) error {
	allTokens, err := config.GetRedisSetMembers("Tokens:" + user.Username)
	if err != nil {
		return err
	}
	for _, token := range allTokens {
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			return err
		}
	}
	if err := config.RemoveRedisKey("Tokens:" + user.Username); err != nil {
		return err
	}

	return nil
}

func ChangePassword(ctx context.Context, oldPassword string, newPassword string) (*User, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == 0 {
		return nil, errors.New("user id is required")
	}

	var user User
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&user, userId).Error; err != nil {
		return nil, err
	}
	// check oldPassword
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return nil, errors.New("old password is wrong")
	}

	//turn password into hash
	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	newPassword = string(hashedPassword)

	tx := db.Begin()
	if err := tx.WithContext(ctx).Model(&user).UpdateColumn("password", newPassword).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := config.RemoveRedisKey("User:" + user.Username); err != nil {
		tx.Rollback()
		return nil, err
	}

	// destroying all session tokens
	if err := user.DestroyAllSessions(ctx); err != nil {
		tx.Rollback()
		return nil, err
	}

	return &user, tx.Commit().Error
}

func ClearRedis(ctx context.Context) (string, error) {
	err := config.ClearRedis(ctx)
	if err != nil {
		return "Failed to clear redis", nil
	}
	return "OK", nil
}
