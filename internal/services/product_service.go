package services

import (
	"context"
	"fmt"

	"agromarket/internal/models"
	"agromarket/internal/pricing"
	"agromarket/internal/repositories"

	"github.com/shopspring/decimal"
)

// BandOf returns the pricing band of a product.
func BandOf(p *models.Product) pricing.Band {
	return pricing.Band{
		MaxPrice:       p.MaxPrice,
		MinPrice:       p.MinPrice,
		TotalAvailable: p.TotalVolume,
		MinVolume:      p.MinVolume,
	}
}

// TierQuote is a suggested purchase volume with its price.
type TierQuote struct {
	Share decimal.Decimal `json:"share"`
	pricing.Quote
}

// ProductQuote is what the catalog shows for a chosen volume.
type ProductQuote struct {
	ProductID string          `json:"product_id"`
	Unit      string          `json:"unit"`
	MaxPrice  decimal.Decimal `json:"max_price"`
	MinPrice  decimal.Decimal `json:"min_price"`
	Quote     pricing.Quote   `json:"quote"`
	Tiers     []TierQuote     `json:"tiers"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo  repositories.ProductRepository
	tiers []decimal.Decimal
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository, tiers []decimal.Decimal) *ProductService {
	if len(tiers) == 0 {
		tiers = pricing.DefaultTiers
	}
	return &ProductService{
		repo:  repo,
		tiers: tiers,
	}
}

// GetAllProducts retrieves the catalog.
func (s *ProductService) GetAllProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	return s.repo.GetAll(ctx, activeOnly)
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct creates a new product after checking its band.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if err := BandOf(product).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	return s.repo.Create(ctx, product)
}

// UpdateProduct updates an existing product after checking its band.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if err := BandOf(product).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	return s.repo.Update(ctx, product)
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Quote prices volume for a product and lists the tier suggestions.
func (s *ProductService) Quote(ctx context.Context, id string, volume decimal.Decimal) (*ProductQuote, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	band := BandOf(product)
	q, err := band.Quote(volume)
	if err != nil {
		return nil, err
	}

	out := &ProductQuote{
		ProductID: product.ID,
		Unit:      product.Unit,
		MaxPrice:  product.MaxPrice,
		MinPrice:  product.MinPrice,
		Quote:     q,
	}
	for i, v := range band.TierVolumes(s.tiers) {
		tq, err := band.Quote(v)
		if err != nil {
			continue
		}
		out.Tiers = append(out.Tiers, TierQuote{Share: s.tiers[i], Quote: tq})
	}
	return out, nil
}
