package transport

import (
	"time"

	"github.com/Skotchmaster/pharmacy/internal/models"
	"github.com/Skotchmaster/pharmacy/pkg/util"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenRequest carries a refresh token for refresh-token and logout.
type TokenRequest struct {
	Token string `json:"token"`
}

type LoginResponse struct {
	Message      string            `json:"message"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	User         models.PublicUser `json:"user"`
}

type RefreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	User         models.PublicUser
}

type CategoryRequest struct {
	Name string `json:"name"`
}

// ExpiryDate accepts "2006-01-02" or RFC 3339.
type CreateMedicineRequest struct {
	Name       string   `json:"name"`
	Company    string   `json:"company"`
	Qty        *int     `json:"qty"`
	CostPrice  *float64 `json:"cost_price"`
	SalePrice  *float64 `json:"sale_price"`
	ExpiryDate *string  `json:"expiry_date"`
	CategoryID *uint    `json:"category_id"`
}

// PatchMedicineRequest leaves nil fields untouched. An empty ExpiryDate
// clears the date.
type PatchMedicineRequest struct {
	Name       *string  `json:"name"`
	Company    *string  `json:"company"`
	Qty        *int     `json:"qty"`
	CostPrice  *float64 `json:"cost_price"`
	SalePrice  *float64 `json:"sale_price"`
	ExpiryDate *string  `json:"expiry_date"`
	CategoryID *uint    `json:"category_id"`
}

type MedicineQuery struct {
	Query        string
	CategoryID   *uint
	Company      string
	ExpiringSoon bool
	LowStock     bool
	Sort         string
	Order        string
	Page         int
	Size         int
}

type MedicinePage struct {
	Data []models.Medicine `json:"data"`
	Meta util.Meta         `json:"meta"`
}
