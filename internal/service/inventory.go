package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Skotchmaster/pharmacy/internal/barcode"
	"github.com/Skotchmaster/pharmacy/internal/models"
	"github.com/Skotchmaster/pharmacy/internal/mykafka"
	"github.com/Skotchmaster/pharmacy/internal/repo"
	"github.com/Skotchmaster/pharmacy/internal/transport"
	"github.com/Skotchmaster/pharmacy/pkg/logging"
	"github.com/Skotchmaster/pharmacy/pkg/util"
)

const (
	LowStockThreshold = 10
	ExpiringWindow    = 30 * 24 * time.Hour

	barcodeAttempts = 5
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrMedicineNotFound = errors.New("medicine not found")
	ErrInvalidBarcode   = errors.New("invalid barcode")
)

type InventoryStore interface {
	CreateCategory(ctx context.Context, c *models.Category) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id uint) (*models.Category, error)
	UpdateCategory(ctx context.Context, id uint, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, id uint) error

	CreateMedicine(ctx context.Context, m *models.Medicine) error
	BarcodeExists(ctx context.Context, code string) (bool, error)
	GetMedicine(ctx context.Context, id uint) (*models.Medicine, error)
	GetMedicineByBarcode(ctx context.Context, code string) (*models.Medicine, error)
	GetMedicinesByIDs(ctx context.Context, ids []uint) ([]models.Medicine, error)
	ListMedicines(ctx context.Context, f repo.MedicineFilter) (int64, []models.Medicine, error)
	SaveMedicine(ctx context.Context, m *models.Medicine) error
	DeleteMedicine(ctx context.Context, id uint) error
	MedicineStats(ctx context.Context, now time.Time, lowStockBelow int, expiringWithin time.Duration) (*repo.MedicineStats, error)
}

// Indexer mirrors medicines into the full-text index.
type Indexer interface {
	Put(ctx context.Context, m *models.Medicine) error
	Remove(ctx context.Context, id uint) error
	Search(ctx context.Context, query string, from, size int) (int64, []uint, error)
}

type InventoryMetrics interface {
	InventoryMutation(entity, action string)
}

type InventoryService struct {
	Repo     InventoryStore
	Index    Indexer
	Events   mykafka.Publisher
	Topic    string
	Metrics  InventoryMetrics
	Now      func() time.Time
	Barcodes io.Reader
}

func (s *InventoryService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// changed runs the side effects of a successful write. None of them can fail
// the request.
func (s *InventoryService) changed(ctx context.Context, entity, action string, ev mykafka.Event) {
	if s.Metrics != nil {
		s.Metrics.InventoryMutation(entity, action)
	}
	if s.Events == nil {
		return
	}
	key := entity + ":" + strconv.FormatUint(uint64(ev.EntityID), 10)
	if err := s.Events.PublishEvent(ctx, s.Topic, key, ev); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", s.Topic, "type", ev.Type, "error", err)
	}
}

func (s *InventoryService) reindex(ctx context.Context, m *models.Medicine) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Put(ctx, m); err != nil {
		logging.FromContext(ctx).Warn("search_index_failed", "medicine_id", m.ID, "error", err)
	}
}

func (s *InventoryService) CreateCategory(ctx context.Context, actorID uint, req transport.CategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	c := &models.Category{Name: name}
	if err := s.Repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.changed(ctx, "category", "create", mykafka.NewEvent(mykafka.EventCategoryCreated, c.ID, actorID, c))
	return c, nil
}

func (s *InventoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.Repo.ListCategories(ctx)
}

func (s *InventoryService) UpdateCategory(ctx context.Context, actorID, id uint, req transport.CategoryRequest) (*models.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	c, err := s.Repo.UpdateCategory(ctx, id, name)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	s.changed(ctx, "category", "update", mykafka.NewEvent(mykafka.EventCategoryUpdated, c.ID, actorID, c))
	return c, nil
}

func (s *InventoryService) DeleteCategory(ctx context.Context, actorID, id uint) error {
	if err := s.Repo.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrCategoryNotFound
		}
		return err
	}
	s.changed(ctx, "category", "delete", mykafka.NewEvent(mykafka.EventCategoryDeleted, id, actorID, nil))
	return nil
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: expiry_date must be YYYY-MM-DD or RFC 3339", ErrValidation)
}

func (s *InventoryService) requireCategory(ctx context.Context, id uint) (*models.Category, error) {
	c, err := s.Repo.GetCategory(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return c, nil
}

// newBarcode draws codes until one is unused.
func (s *InventoryService) newBarcode(ctx context.Context) (string, error) {
	for i := 0; i < barcodeAttempts; i++ {
		code, err := barcode.Generate(s.Barcodes)
		if err != nil {
			return "", err
		}
		taken, err := s.Repo.BarcodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", repo.ErrBarcodeTaken
}

func checkMedicine(m *models.Medicine) error {
	switch {
	case m.Name == "" || m.Company == "":
		return fmt.Errorf("%w: name and company are required", ErrValidation)
	case m.Qty < 0:
		return fmt.Errorf("%w: qty must not be negative", ErrValidation)
	case m.CostPrice <= 0 || m.SalePrice <= 0:
		return fmt.Errorf("%w: prices must be positive", ErrValidation)
	}
	return nil
}

func (s *InventoryService) CreateMedicine(ctx context.Context, actorID uint, req transport.CreateMedicineRequest) (*models.Medicine, error) {
	l := logging.FromContext(ctx).With("svc", "inventory.create_medicine")

	if req.CategoryID == nil || req.CostPrice == nil || req.SalePrice == nil {
		return nil, fmt.Errorf("%w: name, company, category_id, cost_price and sale_price are required", ErrValidation)
	}
	m := &models.Medicine{
		Name:       strings.TrimSpace(req.Name),
		Company:    strings.TrimSpace(req.Company),
		CostPrice:  *req.CostPrice,
		SalePrice:  *req.SalePrice,
		CategoryID: req.CategoryID,
	}
	if req.Qty != nil {
		m.Qty = *req.Qty
	}
	if req.ExpiryDate != nil {
		exp, err := parseDate(*req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		m.ExpiryDate = exp
	}
	if err := checkMedicine(m); err != nil {
		return nil, err
	}

	cat, err := s.requireCategory(ctx, *req.CategoryID)
	if err != nil {
		return nil, err
	}

	code, err := s.newBarcode(ctx)
	if err != nil {
		l.Error("create_medicine_failed", "reason", "cannot allocate barcode", "error", err)
		return nil, err
	}
	m.Barcode = code

	if err := s.Repo.CreateMedicine(ctx, m); err != nil {
		return nil, err
	}
	m.Category = cat

	s.reindex(ctx, m)
	s.changed(ctx, "medicine", "create", mykafka.NewEvent(mykafka.EventMedicineCreated, m.ID, actorID, m))
	l.Info("create_medicine_success", "medicine_id", m.ID, "barcode", m.Barcode)
	return m, nil
}

func (s *InventoryService) GetMedicine(ctx context.Context, id uint) (*models.Medicine, error) {
	m, err := s.Repo.GetMedicine(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMedicineNotFound
	}
	return m, err
}

func (s *InventoryService) GetMedicineByBarcode(ctx context.Context, code string) (*models.Medicine, error) {
	code = strings.TrimSpace(code)
	if !barcode.Valid(code) {
		return nil, ErrInvalidBarcode
	}
	m, err := s.Repo.GetMedicineByBarcode(ctx, code)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrMedicineNotFound
	}
	return m, err
}

func applySort(f *repo.MedicineFilter, sortBy, order string) error {
	sortBy = strings.ToLower(strings.TrimSpace(sortBy))
	order = strings.ToLower(strings.TrimSpace(order))
	if sortBy == "" {
		if order != "" {
			return fmt.Errorf("%w: order requires sort", ErrValidation)
		}
		return nil
	}
	if _, ok := repo.MedicineSortColumns[sortBy]; !ok {
		return fmt.Errorf("%w: unknown sort %q", ErrValidation, sortBy)
	}
	switch order {
	case "", "asc":
	case "desc":
		f.Desc = true
	default:
		return fmt.Errorf("%w: order must be asc or desc", ErrValidation)
	}
	f.SortBy = sortBy
	return nil
}

func (s *InventoryService) ListMedicines(ctx context.Context, q transport.MedicineQuery) (*transport.MedicinePage, error) {
	offset, limit := util.Calculate(q.Page, q.Size)
	f := repo.MedicineFilter{
		Query:      q.Query,
		CategoryID: q.CategoryID,
		Company:    strings.TrimSpace(q.Company),
		Offset:     offset,
		Limit:      limit,
	}
	if err := applySort(&f, q.Sort, q.Order); err != nil {
		return nil, err
	}
	if q.ExpiringSoon {
		now := s.now()
		until := now.Add(ExpiringWindow)
		f.ExpiringAfter, f.ExpiringBefore = &now, &until
	}
	if q.LowStock {
		below := LowStockThreshold
		f.QtyBelow = &below
	}

	total, items, err := s.Repo.ListMedicines(ctx, f)
	if err != nil {
		return nil, err
	}
	return &transport.MedicinePage{Data: items, Meta: util.NewMeta(q.Page, offset, limit, total)}, nil
}

// Search uses the full-text index when one is configured and the index
// answers; otherwise it falls back to the database filter.
func (s *InventoryService) Search(ctx context.Context, query string, page, size int) (*transport.MedicinePage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: q is required", ErrValidation)
	}
	offset, limit := util.Calculate(page, size)

	if s.Index != nil {
		total, ids, err := s.Index.Search(ctx, query, offset, limit)
		if err == nil {
			items, err := s.Repo.GetMedicinesByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			return &transport.MedicinePage{Data: items, Meta: util.NewMeta(page, offset, limit, total)}, nil
		}
		logging.FromContext(ctx).Warn("search_fallback", "reason", "index unavailable", "error", err)
	}

	return s.ListMedicines(ctx, transport.MedicineQuery{Query: query, Page: page, Size: size})
}

func (s *InventoryService) UpdateMedicine(ctx context.Context, actorID, id uint, req transport.PatchMedicineRequest) (*models.Medicine, error) {
	m, err := s.Repo.GetMedicine(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMedicineNotFound
		}
		return nil, err
	}

	if req.Name != nil {
		m.Name = strings.TrimSpace(*req.Name)
	}
	if req.Company != nil {
		m.Company = strings.TrimSpace(*req.Company)
	}
	if req.Qty != nil {
		m.Qty = *req.Qty
	}
	if req.CostPrice != nil {
		m.CostPrice = *req.CostPrice
	}
	if req.SalePrice != nil {
		m.SalePrice = *req.SalePrice
	}
	if req.ExpiryDate != nil {
		exp, err := parseDate(*req.ExpiryDate)
		if err != nil {
			return nil, err
		}
		m.ExpiryDate = exp
	}
	if err := checkMedicine(m); err != nil {
		return nil, err
	}
	if req.CategoryID != nil {
		cat, err := s.requireCategory(ctx, *req.CategoryID)
		if err != nil {
			return nil, err
		}
		m.CategoryID, m.Category = &cat.ID, cat
	}

	if err := s.Repo.SaveMedicine(ctx, m); err != nil {
		return nil, err
	}

	s.reindex(ctx, m)
	s.changed(ctx, "medicine", "update", mykafka.NewEvent(mykafka.EventMedicineUpdated, m.ID, actorID, m))
	return m, nil
}

func (s *InventoryService) DeleteMedicine(ctx context.Context, actorID, id uint) error {
	if err := s.Repo.DeleteMedicine(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrMedicineNotFound
		}
		return err
	}
	if s.Index != nil {
		if err := s.Index.Remove(ctx, id); err != nil {
			logging.FromContext(ctx).Warn("search_remove_failed", "medicine_id", id, "error", err)
		}
	}
	s.changed(ctx, "medicine", "delete", mykafka.NewEvent(mykafka.EventMedicineDeleted, id, actorID, nil))
	return nil
}

func (s *InventoryService) Stats(ctx context.Context) (*repo.MedicineStats, error) {
	return s.Repo.MedicineStats(ctx, s.now(), LowStockThreshold, ExpiringWindow)
}
