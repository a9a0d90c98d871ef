package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleMember     = "member"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

func ValidRole(role string) bool {
	switch role {
	case RoleMember, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"not null"                 json:"name"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null;default:member"  json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the only shape of a user that leaves the server.
type PublicUser struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// RefreshToken rows are never reused: Revoked only moves false -> true.
// Token holds the sha256 of the signed string, never the string itself.
// Deleting the user nulls UserID: refresh then reports the user as gone and
// the sweep removes the row once it expires.
type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"                   json:"id"`
	Token     string    `gorm:"uniqueIndex;not null"         json:"-"`
	JTI       string    `gorm:"uniqueIndex;not null"         json:"jti"`
	UserID    *uint     `gorm:"index"                        json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	ExpiresAt time.Time `gorm:"index;not null"               json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false"       json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

// OwnedBy reports whether the row still belongs to userID.
func (t *RefreshToken) OwnedBy(userID uint) bool {
	return t.UserID != nil && *t.UserID == userID
}

type Category struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"not null"                 json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Medicine struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string     `gorm:"not null;index"           json:"name"`
	Company    string     `gorm:"not null;index"           json:"company"`
	Barcode    string     `gorm:"uniqueIndex;not null"     json:"barcode"`
	Qty        int        `gorm:"not null;default:0"       json:"qty"`
	CostPrice  float64    `gorm:"not null"                 json:"cost_price"`
	SalePrice  float64    `gorm:"not null"                 json:"sale_price"`
	ExpiryDate *time.Time `json:"expiry_date"`
	CategoryID *uint      `gorm:"index"                    json:"category_id"`
	Category   *Category  `gorm:"constraint:OnDelete:SET NULL" json:"category,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &RefreshToken{}, &Category{}, &Medicine{})
}
