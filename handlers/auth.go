package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusworks/guidance-backend/database"
	"github.com/campusworks/guidance-backend/middleware"
	"github.com/campusworks/guidance-backend/models"
)

const refreshTokenTTL = 7 * 24 * time.Hour

// Register creates a student account. Counselor and admin accounts can only
// be created by an admin through the same endpoint.
func Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, 400, CodeAuthErr, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fail(c, 400, CodeAuthErr, "validation failed: "+err.Error())
	}

	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}
	if role != models.RoleStudent {
		// Privileged roles require an authenticated admin.
		if currentUserRole(c) != models.RoleAdmin {
			return fail(c, 403, CodeAuthErr, "only admins can create staff accounts")
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var exists bool
	err := database.GetDB().QueryRow(context.Background(),
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email).Scan(&exists)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error checking existing account")
	}
	if exists {
		return fail(c, 409, CodeAuthErr, "an account with this email already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error hashing password")
	}

	var user models.User
	err = database.GetDB().QueryRow(context.Background(),
		`INSERT INTO users (first_name, last_name, email, password, role, program_section, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		 RETURNING id_user, created_at`,
		req.FirstName, req.LastName, email, string(hashed), role, req.ProgramSection,
	).Scan(&user.IDUser, &user.CreatedAt)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error creating account")
	}

	middleware.LogCustomEvent(models.LogLevelSuccess, "account registered", email, role, map[string]interface{}{
		"user_id": user.IDUser,
	})

	return ok(c, 201, CodeAuthOK, models.UserResponse{
		ID:             user.IDUser,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          email,
		Role:           role,
		ProgramSection: req.ProgramSection,
		CreatedAt:      user.CreatedAt,
	})
}

// Login verifies credentials and, when MFA is enabled, the TOTP code, then
// issues the token pair.
func Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, 400, CodeAuthErr, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fail(c, 400, CodeAuthErr, "email and password are required")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	var programSection *string
	err := database.GetDB().QueryRow(context.Background(),
		`SELECT id_user, first_name, last_name, email, password, role, program_section,
		        mfa_enabled, COALESCE(mfa_secret, ''), COALESCE(backup_codes, ''), created_at
		 FROM users WHERE email = $1`, email,
	).Scan(&user.IDUser, &user.FirstName, &user.LastName, &user.Email, &user.Password,
		&user.Role, &programSection, &user.MFAEnabled, &user.MFASecret, &user.BackupCodes, &user.CreatedAt)
	if err != nil {
		return fail(c, 401, CodeAuthErr, "invalid credentials")
	}
	if programSection != nil {
		user.ProgramSection = *programSection
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		middleware.LogCustomEvent(models.LogLevelWarning, "failed login attempt", email, "", nil)
		return fail(c, 401, CodeAuthErr, "invalid credentials")
	}

	if user.MFAEnabled {
		if req.MFACode == "" {
			return ok(c, 200, CodeAuthOK, models.LoginResponse{RequiresMFA: true})
		}
		if !verifyMFACode(&user, req.MFACode) {
			return fail(c, 401, CodeAuthErr, "invalid MFA code")
		}
	}

	accessToken, err := middleware.GenerateJWT(user.IDUser, user.Role, user.Email)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error generating token")
	}

	refreshToken, err := issueRefreshToken(user.IDUser)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error generating refresh token")
	}

	middleware.LogCustomEvent(models.LogLevelSuccess, "login", user.Email, user.Role, nil)

	return ok(c, 200, CodeAuthOK, models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(middleware.AccessTokenTTL.Seconds()),
		User: models.UserResponse{
			ID:             user.IDUser,
			FirstName:      user.FirstName,
			LastName:       user.LastName,
			Email:          user.Email,
			Role:           user.Role,
			ProgramSection: user.ProgramSection,
			MFAEnabled:     user.MFAEnabled,
			CreatedAt:      user.CreatedAt,
		},
	})
}

// RefreshAccessToken rotates the refresh token and issues a new access token.
func RefreshAccessToken(c *fiber.Ctx) error {
	var req models.RefreshRequest
	if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return fail(c, 400, CodeAuthErr, "refresh_token is required")
	}

	var rt models.RefreshToken
	err := database.GetDB().QueryRow(context.Background(),
		`SELECT id, user_id, token, expires_at, is_revoked FROM refresh_tokens WHERE token = $1`,
		req.RefreshToken,
	).Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.ExpiresAt, &rt.IsRevoked)
	if err != nil {
		return fail(c, 401, CodeAuthErr, "invalid refresh token")
	}
	if rt.IsRevoked || time.Now().After(rt.ExpiresAt) {
		return fail(c, 401, CodeAuthErr, "refresh token expired or revoked")
	}

	var role, email string
	err = database.GetDB().QueryRow(context.Background(),
		"SELECT role, email FROM users WHERE id_user = $1", rt.UserID).Scan(&role, &email)
	if err != nil {
		return fail(c, 401, CodeAuthErr, "account not found")
	}

	// Rotate: revoke the used token, hand out a fresh one.
	_, err = database.GetDB().Exec(context.Background(),
		"UPDATE refresh_tokens SET is_revoked = TRUE WHERE id = $1", rt.ID)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error rotating refresh token")
	}

	accessToken, err := middleware.GenerateJWT(rt.UserID, role, email)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error generating token")
	}
	newRefresh, err := issueRefreshToken(rt.UserID)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error generating refresh token")
	}

	return ok(c, 200, CodeAuthOK, models.RefreshResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresIn:    int(middleware.AccessTokenTTL.Seconds()),
	})
}

// Logout revokes all of the caller's refresh tokens.
func Logout(c *fiber.Ctx) error {
	userID := currentUserID(c)
	_, err := database.GetDB().Exec(context.Background(),
		"UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = $1 AND is_revoked = FALSE", userID)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error revoking tokens")
	}
	return ok(c, 200, CodeAuthOK, fiber.Map{"message": "logged out"})
}

// Profile returns the authenticated user's account.
func Profile(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var user models.UserResponse
	var programSection *string
	err := database.GetDB().QueryRow(context.Background(),
		`SELECT id_user, first_name, last_name, email, role, program_section, mfa_enabled, created_at
		 FROM users WHERE id_user = $1`, userID,
	).Scan(&user.ID, &user.FirstName, &user.LastName, &user.Email, &user.Role,
		&programSection, &user.MFAEnabled, &user.CreatedAt)
	if err != nil {
		return fail(c, 404, CodeAuthErr, "account not found")
	}
	if programSection != nil {
		user.ProgramSection = *programSection
	}

	return ok(c, 200, CodeAuthOK, user)
}

// SetupMFA generates a TOTP secret and backup codes for the caller. MFA is
// not active until the first code is verified.
func SetupMFA(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req models.MFASetupRequest
	if err := c.BodyParser(&req); err != nil || req.Password == "" {
		return fail(c, 400, CodeAuthErr, "password is required")
	}

	var email, hashed string
	err := database.GetDB().QueryRow(context.Background(),
		"SELECT email, password FROM users WHERE id_user = $1", userID).Scan(&email, &hashed)
	if err != nil {
		return fail(c, 404, CodeAuthErr, "account not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(req.Password)); err != nil {
		return fail(c, 401, CodeAuthErr, "invalid password")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "Guidance Office",
		AccountName: email,
	})
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error generating MFA secret")
	}

	backupCodes := make([]string, 8)
	for i := range backupCodes {
		backupCodes[i] = strings.ToUpper(uuid.NewString()[:8])
	}
	codesJSON, err := json.Marshal(backupCodes)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error generating backup codes")
	}

	_, err = database.GetDB().Exec(context.Background(),
		"UPDATE users SET mfa_secret = $1, backup_codes = $2, updated_at = NOW() WHERE id_user = $3",
		key.Secret(), string(codesJSON), userID)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error saving MFA secret")
	}

	return ok(c, 200, CodeAuthOK, models.MFASetupResponse{
		Secret:      key.Secret(),
		QRCodeURL:   key.URL(),
		BackupCodes: backupCodes,
	})
}

// VerifyMFA confirms the first TOTP code and turns MFA on.
func VerifyMFA(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req models.MFAVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, 400, CodeAuthErr, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fail(c, 400, CodeAuthErr, "a 6-digit code is required")
	}

	var secret string
	err := database.GetDB().QueryRow(context.Background(),
		"SELECT COALESCE(mfa_secret, '') FROM users WHERE id_user = $1", userID).Scan(&secret)
	if err != nil || secret == "" {
		return fail(c, 400, CodeAuthErr, "MFA setup has not been started")
	}

	if !totp.Validate(req.Code, secret) {
		return fail(c, 401, CodeAuthErr, "invalid MFA code")
	}

	_, err = database.GetDB().Exec(context.Background(),
		"UPDATE users SET mfa_enabled = TRUE, updated_at = NOW() WHERE id_user = $1", userID)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error enabling MFA")
	}

	middleware.LogCustomEvent(models.LogLevelSuccess, "MFA enabled", currentUserEmail(c), currentUserRole(c), nil)
	return ok(c, 200, CodeAuthOK, fiber.Map{"message": "MFA enabled"})
}

// DisableMFA turns MFA off after re-verifying the password.
func DisableMFA(c *fiber.Ctx) error {
	userID := currentUserID(c)

	var req models.MFASetupRequest
	if err := c.BodyParser(&req); err != nil || req.Password == "" {
		return fail(c, 400, CodeAuthErr, "password is required")
	}

	var hashed string
	err := database.GetDB().QueryRow(context.Background(),
		"SELECT password FROM users WHERE id_user = $1", userID).Scan(&hashed)
	if err != nil {
		return fail(c, 404, CodeAuthErr, "account not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(req.Password)); err != nil {
		return fail(c, 401, CodeAuthErr, "invalid password")
	}

	_, err = database.GetDB().Exec(context.Background(),
		"UPDATE users SET mfa_enabled = FALSE, mfa_secret = NULL, backup_codes = NULL, updated_at = NOW() WHERE id_user = $1",
		userID)
	if err != nil {
		return fail(c, 500, CodeAuthErr, "error disabling MFA")
	}

	middleware.LogCustomEvent(models.LogLevelInfo, "MFA disabled", currentUserEmail(c), currentUserRole(c), nil)
	return ok(c, 200, CodeAuthOK, fiber.Map{"message": "MFA disabled"})
}

// verifyMFACode accepts a TOTP code or one of the single-use backup codes.
func verifyMFACode(user *models.User, code string) bool {
	if totp.Validate(code, user.MFASecret) {
		return true
	}

	var codes []string
	if err := json.Unmarshal([]byte(user.BackupCodes), &codes); err != nil {
		return false
	}
	for i, backup := range codes {
		if strings.EqualFold(code, backup) {
			remaining := append(codes[:i], codes[i+1:]...)
			updated, err := json.Marshal(remaining)
			if err != nil {
				return false
			}
			_, err = database.GetDB().Exec(context.Background(),
				"UPDATE users SET backup_codes = $1, updated_at = NOW() WHERE id_user = $2",
				string(updated), user.IDUser)
			return err == nil
		}
	}
	return false
}

func issueRefreshToken(userID int) (string, error) {
	token := uuid.NewString()
	_, err := database.GetDB().Exec(context.Background(),
		`INSERT INTO refresh_tokens (user_id, token, expires_at, created_at)
		 VALUES ($1, $2, $3, NOW())`,
		userID, token, time.Now().Add(refreshTokenTTL))
	if err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return token, nil
}
