package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"manifesthub/internal/config"
	"manifesthub/internal/database"
	"manifesthub/internal/models"
	"manifesthub/internal/server/middleware"
	"manifesthub/internal/services"
)

const (
	minPasswordLength = 6
	// bcrypt rejects longer input
	maxPasswordLength = 72
)

func passwordRule(p string) error {
	if len(p) < minPasswordLength {
		return badRequest(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if len(p) > maxPasswordLength {
		return badRequest(fmt.Sprintf("Password must be at most %d bytes", maxPasswordLength))
	}
	return nil
}

type authResponse struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

type userView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func issue(c *fiber.Ctx, user *models.User) error {
	token, err := services.GenerateUserToken(user, config.Current.TokenTTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	return success(c, authResponse{
		User:  userView{ID: user.ID, Username: user.Username, Role: user.Role},
		Token: token,
	})
}

func usernameTaken(username string) (bool, error) {
	var count int64
	err := database.DB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

func Register(c *fiber.Ctx) error {
	var in struct {
		Username    string `json:"username"`
		Password    string `json:"password"`
		AdminSecret string `json:"adminSecret"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid body")
	}
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return badRequest("Username and password required")
	}
	if err := passwordRule(in.Password); err != nil {
		return err
	}
	taken, err := usernameTaken(in.Username)
	if err != nil {
		return err
	}
	if taken {
		return badRequest("Username already exists")
	}

	user := models.User{Username: in.Username, Role: models.RoleUser}
	secret := config.Current.AdminSecret
	if secret != "" && subtle.ConstantTimeCompare([]byte(in.AdminSecret), []byte(secret)) == 1 {
		user.Role = models.RoleAdmin
	}
	if err := user.SetPassword(in.Password); err != nil {
		return err
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return err
	}
	log.Info("registered user", "username", user.Username, "role", user.Role)
	return issue(c, &user)
}

func Login(c *fiber.Ctx) error {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid body")
	}
	if in.Username == "" || in.Password == "" {
		return badRequest("Username and password required")
	}
	var user models.User
	if err := database.DB.Where("username = ?", strings.TrimSpace(in.Username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
		}
		return err
	}
	if !user.CheckPassword(in.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}
	return issue(c, &user)
}

func Profile(c *fiber.Ctx) error {
	return success(c, middleware.CurrentUser(c))
}

func UpdateUsername(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	var in struct {
		NewUsername string `json:"newUsername"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid body")
	}
	name := strings.TrimSpace(in.NewUsername)
	if name == "" {
		return badRequest("Username required")
	}
	if name == user.Username {
		return badRequest("New username must be different")
	}
	now := time.Now()
	if next := user.NextUsernameChange(now); !next.IsZero() {
		days := int(math.Ceil(next.Sub(now).Hours() / 24))
		return badRequest(fmt.Sprintf("You can change your username again in %d days", days))
	}
	taken, err := usernameTaken(name)
	if err != nil {
		return err
	}
	if taken {
		return badRequest("Username already exists")
	}
	user.Username = name
	user.UsernameChangedAt = &now
	if err := database.DB.Save(user).Error; err != nil {
		return err
	}
	// the old token still carries the previous username
	token, err := services.GenerateUserToken(user, config.Current.TokenTTL)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": user, "token": token})
}

func UpdatePassword(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	var in struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid body")
	}
	if err := passwordRule(in.NewPassword); err != nil {
		return err
	}
	if !user.CheckPassword(in.CurrentPassword) {
		return fiber.NewError(fiber.StatusUnauthorized, "Current password is incorrect")
	}
	if err := user.SetPassword(in.NewPassword); err != nil {
		return err
	}
	if err := database.DB.Save(user).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "message": "Password updated successfully"})
}

func UpdateProfilePicture(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	var in struct {
		ProfilePicture string `json:"profilePicture"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest("invalid body")
	}
	if in.ProfilePicture != "" && !strings.HasPrefix(in.ProfilePicture, "data:image/") {
		return badRequest("Profile picture must be an image data URL")
	}
	user.ProfilePicture = in.ProfilePicture
	if err := database.DB.Save(user).Error; err != nil {
		return err
	}
	return success(c, user)
}
