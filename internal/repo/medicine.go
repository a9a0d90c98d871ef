package repo

import (
	"context"
	"strings"
	"time"

	"github.com/Skotchmaster/pharmacy/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MedicineSortColumns maps the accepted sort keys to medicines columns.
var MedicineSortColumns = map[string]string{
	"name":        "name",
	"company":     "company",
	"qty":         "qty",
	"cost_price":  "cost_price",
	"sale_price":  "sale_price",
	"expiry_date": "expiry_date",
	"created_at":  "created_at",
}

type MedicineFilter struct {
	Query          string
	CategoryID     *uint
	Company        string
	ExpiringAfter  *time.Time
	ExpiringBefore *time.Time
	QtyBelow       *int
	// SortBy is a key of MedicineSortColumns; empty means newest first.
	SortBy string
	Desc   bool
	Offset int
	Limit  int
}

type MedicineStats struct {
	TotalMedicines int64   `json:"total_medicines"`
	TotalValue     float64 `json:"total_value"`
	TotalProfit    float64 `json:"total_profit"`
	LowStock       int64   `json:"low_stock"`
	ExpiringSoon   int64   `json:"expiring_soon"`
}

func (r *GormRepo) CreateMedicine(ctx context.Context, m *models.Medicine) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *GormRepo) BarcodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Medicine{}).Where("barcode = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *GormRepo) GetMedicine(ctx context.Context, id uint) (*models.Medicine, error) {
	var m models.Medicine
	if err := r.DB.WithContext(ctx).Preload("Category").First(&m, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *GormRepo) GetMedicineByBarcode(ctx context.Context, code string) (*models.Medicine, error) {
	var m models.Medicine
	if err := r.DB.WithContext(ctx).Preload("Category").Where("barcode = ?", code).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func applyMedicineFilter(q *gorm.DB, f MedicineFilter) *gorm.DB {
	q = q.Joins("LEFT JOIN categories ON categories.id = medicines.category_id")
	if s := strings.ToLower(strings.TrimSpace(f.Query)); s != "" {
		like := "%" + s + "%"
		q = q.Where(
			"LOWER(medicines.name) LIKE ? OR LOWER(medicines.company) LIKE ? OR LOWER(categories.name) LIKE ?",
			like, like, like,
		)
	}
	if f.CategoryID != nil {
		q = q.Where("medicines.category_id = ?", *f.CategoryID)
	}
	if f.Company != "" {
		q = q.Where("medicines.company = ?", f.Company)
	}
	if f.ExpiringAfter != nil {
		q = q.Where("medicines.expiry_date > ?", f.ExpiringAfter.UTC())
	}
	if f.ExpiringBefore != nil {
		q = q.Where("medicines.expiry_date <= ?", f.ExpiringBefore.UTC())
	}
	if f.QtyBelow != nil {
		q = q.Where("medicines.qty < ?", *f.QtyBelow)
	}
	return q
}

// ListMedicines returns the filtered page together with the unpaged total.
// Rows are ordered by f.SortBy with id as tie-break, or newest first.
func (r *GormRepo) ListMedicines(ctx context.Context, f MedicineFilter) (int64, []models.Medicine, error) {
	var total int64
	if err := applyMedicineFilter(r.DB.WithContext(ctx).Model(&models.Medicine{}), f).
		Count(&total).Error; err != nil {
		return 0, nil, err
	}

	items := make([]models.Medicine, 0, f.Limit)
	q := applyMedicineFilter(r.DB.WithContext(ctx).Model(&models.Medicine{}), f).
		Select("medicines.*").
		Preload("Category")
	if col, ok := MedicineSortColumns[f.SortBy]; ok {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Table: "medicines", Name: col}, Desc: f.Desc}).
			Order(clause.OrderByColumn{Column: clause.Column{Table: "medicines", Name: "id"}, Desc: f.Desc})
	} else {
		q = q.Order("medicines.id DESC")
	}
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}
	if err := q.Find(&items).Error; err != nil {
		return 0, nil, err
	}
	return total, items, nil
}

// GetMedicinesByIDs keeps the order of ids and skips ids that no longer exist.
func (r *GormRepo) GetMedicinesByIDs(ctx context.Context, ids []uint) ([]models.Medicine, error) {
	if len(ids) == 0 {
		return []models.Medicine{}, nil
	}
	var found []models.Medicine
	if err := r.DB.WithContext(ctx).Preload("Category").Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Medicine, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}
	out := make([]models.Medicine, 0, len(found))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *GormRepo) SaveMedicine(ctx context.Context, m *models.Medicine) error {
	return r.DB.WithContext(ctx).Omit("Category").Save(m).Error
}

func (r *GormRepo) DeleteMedicine(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&models.Medicine{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) MedicineStats(ctx context.Context, now time.Time, lowStockBelow int, expiringWithin time.Duration) (*MedicineStats, error) {
	var stats MedicineStats
	db := r.DB.WithContext(ctx)

	if err := db.Model(&models.Medicine{}).
		Select("COUNT(*) AS total_medicines, " +
			"COALESCE(SUM(qty * cost_price), 0) AS total_value, " +
			"COALESCE(SUM(qty * (sale_price - cost_price)), 0) AS total_profit").
		Scan(&stats).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Medicine{}).
		Where("qty < ?", lowStockBelow).
		Count(&stats.LowStock).Error; err != nil {
		return nil, err
	}

	now = now.UTC()
	if err := db.Model(&models.Medicine{}).
		Where("expiry_date > ? AND expiry_date <= ?", now, now.Add(expiringWithin)).
		Count(&stats.ExpiringSoon).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}
