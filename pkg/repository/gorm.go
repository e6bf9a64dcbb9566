package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/smartcart/pkg/config"
	"github.com/example/smartcart/pkg/errs"
	"github.com/example/smartcart/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// GormStore is the MySQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(cfg *config.MySQLConfig) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.AutoMigrate(
		&models.Product{},
		&models.Cart{},
		&models.CartItem{},
		&models.Alert{},
		&models.Transaction{},
		&models.TransactionItem{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an already-open gorm handle (tests, alternate drivers).
func NewGormStoreFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error, entity string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound("%s %v not found", entity, id)
	}
	return err
}

func (s *GormStore) CreateProduct(ctx context.Context, p *models.Product) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

func (s *GormStore) GetProductByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).Where("barcode = ?", barcode).First(&p).Error; err != nil {
		return nil, notFound(err, "product", barcode)
	}
	return &p, nil
}

func (s *GormStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := s.db.WithContext(ctx).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *GormStore) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error
	return n, err
}

func (s *GormStore) CreateCart(ctx context.Context, c *models.Cart) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *GormStore) GetCart(ctx context.Context, id uint) (*models.Cart, error) {
	var c models.Cart
	if err := s.db.WithContext(ctx).Preload("Items").First(&c, id).Error; err != nil {
		return nil, notFound(err, "cart", id)
	}
	return &c, nil
}

func (s *GormStore) GetCartBySession(ctx context.Context, sessionID string) (*models.Cart, error) {
	var c models.Cart
	if err := s.db.WithContext(ctx).Preload("Items").
		Where("session_id = ?", sessionID).First(&c).Error; err != nil {
		return nil, notFound(err, "cart", sessionID)
	}
	return &c, nil
}

func (s *GormStore) UpdateCart(ctx context.Context, c *models.Cart) error {
	return s.db.WithContext(ctx).Omit("Items").Save(c).Error
}

func (s *GormStore) ListCarts(ctx context.Context, status *models.CartStatus) ([]models.Cart, error) {
	q := s.db.WithContext(ctx).Preload("Items")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var carts []models.Cart
	if err := q.Find(&carts).Error; err != nil {
		return nil, err
	}
	return carts, nil
}

func (s *GormStore) GetCartItem(ctx context.Context, id uint) (*models.CartItem, error) {
	var item models.CartItem
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, notFound(err, "cart item", id)
	}
	return &item, nil
}

func (s *GormStore) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *GormStore) UpdateCartItem(ctx context.Context, item *models.CartItem) error {
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *GormStore) DeleteCartItem(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.CartItem{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("cart item %d not found", id)
	}
	return nil
}

func (s *GormStore) CreateAlert(ctx context.Context, a *models.Alert) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *GormStore) GetAlert(ctx context.Context, id uint) (*models.Alert, error) {
	var a models.Alert
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, notFound(err, "alert", id)
	}
	return &a, nil
}

func (s *GormStore) UpdateAlert(ctx context.Context, a *models.Alert) error {
	return s.db.WithContext(ctx).Save(a).Error
}

func (s *GormStore) ListAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	q := s.db.WithContext(ctx).Model(&models.Alert{})
	if f.CartID != nil {
		q = q.Where("cart_id = ?", *f.CartID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.Since != nil {
		q = q.Where("created_at >= FROM_UNIXTIME(?)", *f.Since)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var alerts []models.Alert
	if err := q.Order("created_at DESC").Limit(limit).Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *GormStore) CreateTransaction(ctx context.Context, t *models.Transaction) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(t).Error
	})
}

func (s *GormStore) GetTransactionByRef(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var t models.Transaction
	if err := s.db.WithContext(ctx).Preload("Items").
		Where("transaction_id = ?", transactionID).First(&t).Error; err != nil {
		return nil, notFound(err, "transaction", transactionID)
	}
	return &t, nil
}
