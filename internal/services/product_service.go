package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketplace/internal/models"
	"marketplace/internal/repositories"
	pkgerrors "marketplace/pkg/errors"

	"github.com/shopspring/decimal"
)

// ProductRequest is the create/update body for a product.
type ProductRequest struct {
	Name        string               `json:"name" validate:"required,min=3,max=100"`
	Description string               `json:"description" validate:"omitempty,max=500"`
	Price       decimal.Decimal      `json:"price"`
	Stock       int                  `json:"stock" validate:"gte=0"`
	Status      models.ProductStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

// BoostRequest activates a featured placement for a number of days.
type BoostRequest struct {
	Days    int    `json:"days" validate:"required,min=1,max=90"`
	Package string `json:"package" validate:"required,max=50"`
}

// ProductService handles business logic related to products.
type ProductService struct {
	repo repositories.ProductRepository
	now  func() time.Time
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
		now:  time.Now,
	}
}

// GetAllProducts retrieves all listed products, featured first.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// GetProductByID retrieves a single product. Deleted products are not found.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return listedProduct(ctx, s.repo, id)
}

// CreateProduct lists a new product for the seller.
func (s *ProductService) CreateProduct(ctx context.Context, sellerID string, req ProductRequest) (*models.Product, error) {
	if err := validateProduct(req); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = models.ProductStatusActive
	}
	product := &models.Product{
		SellerID:    sellerID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price.Round(2),
		Stock:       req.Stock,
		Status:      status,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	return product, nil
}

// UpdateProduct replaces the editable fields of a product owned by the caller.
func (s *ProductService) UpdateProduct(ctx context.Context, userID string, role models.Role, id string, req ProductRequest) (*models.Product, error) {
	if err := validateProduct(req); err != nil {
		return nil, err
	}
	product, err := s.ownedProduct(ctx, userID, role, id)
	if err != nil {
		return nil, err
	}
	product.Name = req.Name
	product.Description = req.Description
	product.Price = req.Price.Round(2)
	product.Stock = req.Stock
	if req.Status != "" {
		product.Status = req.Status
	}
	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, fmt.Errorf("updating product: %w", err)
	}
	return product, nil
}

// DeleteProduct soft-deletes a product owned by the caller.
func (s *ProductService) DeleteProduct(ctx context.Context, userID string, role models.Role, id string) error {
	if _, err := s.ownedProduct(ctx, userID, role, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return fmt.Errorf("deleting product: %w", err)
	}
	return nil
}

// ActivateBoost lets an admin feature a product from now for req.Days days
// without a payment. Sellers buy boosts through BoostService.
func (s *ProductService) ActivateBoost(ctx context.Context, productID string, role models.Role, req BoostRequest) (*models.Product, error) {
	if role != models.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "boosts are granted by admins only")
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	product, err := s.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.Status != models.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only active products can be boosted")
	}

	start := s.now().UTC()
	end := start.AddDate(0, 0, req.Days)
	product.IsFeatured = true
	product.Boost = models.Boost{
		Active:    true,
		Package:   req.Package,
		StartDate: &start,
		EndDate:   &end,
		PaymentID: product.Boost.PaymentID,
	}
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("activating boost: %w", err)
	}
	return product, nil
}

func (s *ProductService) ownedProduct(ctx context.Context, userID string, role models.Role, id string) (*models.Product, error) {
	return ownedProduct(ctx, s.repo, userID, role, id)
}

func listedProduct(ctx context.Context, repo repositories.ProductRepository, id string) (*models.Product, error) {
	product, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, fmt.Errorf("loading product: %w", err)
	}
	if product.Status == models.ProductStatusDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// ownedProduct loads a listed product the caller may manage: its seller or an admin.
func ownedProduct(ctx context.Context, repo repositories.ProductRepository, userID string, role models.Role, id string) (*models.Product, error) {
	product, err := listedProduct(ctx, repo, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && product.SellerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another seller")
	}
	return product, nil
}

func validateProduct(req ProductRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	if req.Price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{
			"ProductRequest.Price": "failed on the 'gte' tag",
		})
	}
	return nil
}
