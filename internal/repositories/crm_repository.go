package repositories

import (
	"context"
	"fmt"

	"agromarket/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClientRepository stores a representative's client portfolio.
type ClientRepository interface {
	CreateBatch(ctx context.Context, clients []models.Client) (int, error)
	ListByRepresentative(ctx context.Context, representativeID string) ([]models.Client, error)
}

// CommissionRepository stores representative commissions.
type CommissionRepository interface {
	Create(ctx context.Context, c *models.Commission) error
	ListByRepresentative(ctx context.Context, representativeID string) ([]models.Commission, error)
}

// GORMClientRepository is a GORM implementation of ClientRepository.
type GORMClientRepository struct {
	db *gorm.DB
}

func NewGORMClientRepository(db *gorm.DB) *GORMClientRepository {
	return &GORMClientRepository{db: db}
}

// CreateBatch inserts clients, skipping CNPJs the representative already has.
// It returns how many rows were actually inserted.
func (r *GORMClientRepository) CreateBatch(ctx context.Context, clients []models.Client) (int, error) {
	inserted := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range clients {
			if clients[i].ID == "" {
				clients[i].ID = uuid.New().String()
			}
			var exists int64
			if err := tx.Model(&models.Client{}).
				Where("representative_id = ? AND cnpj = ?", clients[i].RepresentativeID, clients[i].CNPJ).
				Count(&exists).Error; err != nil {
				return err
			}
			if exists > 0 {
				continue
			}
			if err := tx.Create(&clients[i]).Error; err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to import clients: %w", err)
	}
	return inserted, nil
}

func (r *GORMClientRepository) ListByRepresentative(ctx context.Context, representativeID string) ([]models.Client, error) {
	var clients []models.Client
	if err := r.db.WithContext(ctx).Where("representative_id = ?", representativeID).
		Order("company_name").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// GORMCommissionRepository is a GORM implementation of CommissionRepository.
type GORMCommissionRepository struct {
	db *gorm.DB
}

func NewGORMCommissionRepository(db *gorm.DB) *GORMCommissionRepository {
	return &GORMCommissionRepository{db: db}
}

func (r *GORMCommissionRepository) Create(ctx context.Context, c *models.Commission) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("commission for order %s: %w", c.OrderID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create commission: %w", err)
	}
	return nil
}

func (r *GORMCommissionRepository) ListByRepresentative(ctx context.Context, representativeID string) ([]models.Commission, error) {
	var out []models.Commission
	if err := r.db.WithContext(ctx).Where("representative_id = ?", representativeID).
		Order("created_at desc").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}
	return out, nil
}
