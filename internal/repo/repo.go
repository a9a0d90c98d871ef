package repo

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrUserAlreadyExist    = errors.New("user already exist")
	ErrUsersExist          = errors.New("users already provisioned")
	ErrTokenAlreadyRevoked = errors.New("refresh token already revoked")
	ErrBarcodeTaken        = errors.New("barcode already taken")
)

// GormRepo is the single relational store behind users, refresh tokens and
// inventory. It keeps no state besides the handle.
type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
