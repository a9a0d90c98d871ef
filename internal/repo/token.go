package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/pharmacy/internal/models"
	"gorm.io/gorm"
)

func (r *GormRepo) AddRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *GormRepo) FindRefreshByToken(ctx context.Context, fingerprint string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.DB.WithContext(ctx).Where("token = ?", fingerprint).First(&token).Error; err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

func (r *GormRepo) ListRefreshTokens(ctx context.Context, userID uint) ([]models.RefreshToken, error) {
	var out []models.RefreshToken
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&out).Error
	return out, err
}

// markRevoked is the compare-and-set: only a row still active is flipped, so
// of two writers racing on one token exactly one sees RowsAffected == 1.
func markRevoked(tx *gorm.DB, id uint) error {
	res := tx.Model(&models.RefreshToken{}).
		Where("id = ? AND revoked = ?", id, false).
		Update("revoked", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTokenAlreadyRevoked
	}
	return nil
}

// RotateRefreshToken revokes oldID and stores next in one transaction.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldID uint, next *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := markRevoked(tx, oldID); err != nil {
			return err
		}
		return tx.Create(next).Error
	})
}

// RevokeRefreshToken reports whether an active row was revoked. Unknown or
// already revoked tokens are not an error.
func (r *GormRepo) RevokeRefreshToken(ctx context.Context, fingerprint string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND revoked = ?", fingerprint, false).
		Update("revoked", true)
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) RevokeAllForUser(ctx context.Context, userID uint) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	return res.RowsAffected, res.Error
}

// PurgeExpired physically removes rows whose token can no longer verify.
func (r *GormRepo) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("expires_at < ?", before.UTC()).
		Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
