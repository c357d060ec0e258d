package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"shophub/internal/apperr"
	"shophub/internal/models"
	"shophub/internal/repositories"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
)

// CreateProductRequest is the admin payload for a new product.
type CreateProductRequest struct {
	Name            string          `json:"name" validate:"required,max=100"`
	Description     string          `json:"description"`
	Category        string          `json:"category" validate:"required,max=100"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	Stock           int             `json:"stock" validate:"gte=0"`
	ImageURL        string          `json:"imageUrl"`
	IsPublished     *bool           `json:"isPublished"`
}

// ProductUpdate is a partial update. Only non-nil fields are written.
type ProductUpdate struct {
	Name            *string          `json:"name" validate:"omitempty,min=1,max=100"`
	Description     *string          `json:"description"`
	Category        *string          `json:"category" validate:"omitempty,min=1,max=100"`
	Price           *decimal.Decimal `json:"price"`
	DiscountPercent *decimal.Decimal `json:"discountPercent"`
	Stock           *int             `json:"stock" validate:"omitempty,gte=0"`
	ImageURL        *string          `json:"imageUrl"`
	IsPublished     *bool            `json:"isPublished"`
}

var (
	hundred     = decimal.NewFromInt(100)
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)
)

// Slug derives a unique URL slug from a product name.
func Slug(name string, at time.Time) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugInvalid.ReplaceAllString(s, "")
	return fmt.Sprintf("%s-%d", s, at.UnixMilli())
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

// GetAllProducts retrieves all products, published or not.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// ListPublishedProducts returns one page of the storefront catalog.
func (s *ProductService) ListPublishedProducts(ctx context.Context, page, size int) ([]models.Product, Page, error) {
	page, size = pageBounds(page, size)
	products, total, err := s.repo.ListPublished(ctx, page, size)
	if err != nil {
		return nil, Page{}, err
	}
	return products, newPage(page, size, total), nil
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// GetPublishedProduct retrieves a storefront product by slug.
func (s *ProductService) GetPublishedProduct(ctx context.Context, slug string) (*models.Product, error) {
	return s.repo.GetPublishedBySlug(ctx, slug)
}

// CreateProduct creates a new product.
func (s *ProductService) CreateProduct(ctx context.Context, req CreateProductRequest) (*models.Product, error) {
	if err := checkPricing(req.Price, req.DiscountPercent); err != nil {
		return nil, err
	}
	if req.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", apperr.ErrValidation)
	}

	published := true
	if req.IsPublished != nil {
		published = *req.IsPublished
	}
	product := &models.Product{
		Name:            req.Name,
		Slug:            Slug(req.Name, s.now()),
		Description:     req.Description,
		Category:        req.Category,
		Price:           req.Price,
		DiscountPercent: req.DiscountPercent,
		DiscountPrice:   models.DiscountedPrice(req.Price, req.DiscountPercent),
		Stock:           req.Stock,
		ImageURL:        req.ImageURL,
		IsPublished:     published,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}
	log.Printf("Created product %s (%s)", product.ID, product.Slug)
	return product, nil
}

// UpdateProduct applies a partial update. The slug follows the name and the discount
// price follows the price and percentage.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, upd ProductUpdate) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil && *upd.Name != product.Name {
		product.Name = *upd.Name
		product.Slug = Slug(product.Name, s.now())
	}
	if upd.Description != nil {
		product.Description = *upd.Description
	}
	if upd.Category != nil {
		product.Category = *upd.Category
	}
	if upd.Price != nil {
		product.Price = *upd.Price
	}
	if upd.DiscountPercent != nil {
		product.DiscountPercent = *upd.DiscountPercent
	}
	if upd.Stock != nil {
		if *upd.Stock < 0 {
			return nil, fmt.Errorf("%w: stock must not be negative", apperr.ErrValidation)
		}
		product.Stock = *upd.Stock
	}
	if upd.ImageURL != nil {
		product.ImageURL = *upd.ImageURL
	}
	if upd.IsPublished != nil {
		product.IsPublished = *upd.IsPublished
	}
	if err := checkPricing(product.Price, product.DiscountPercent); err != nil {
		return nil, err
	}
	product.DiscountPrice = models.DiscountedPrice(product.Price, product.DiscountPercent)

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// TogglePublish flips the storefront visibility of a product.
func (s *ProductService) TogglePublish(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	product.IsPublished = !product.IsPublished
	if err := s.repo.Update(ctx, product); err != nil {
		return nil, err
	}
	log.Printf("Product %s published=%t", product.ID, product.IsPublished)
	return product, nil
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

var exportHeaders = []string{
	"ID", "Name", "Slug", "Category", "Price", "DiscountPercent", "DiscountPrice",
	"Stock", "Published", "CreatedAt", "UpdatedAt",
}

// ExportProducts writes every product to w as an xlsx workbook.
func (s *ProductService) ExportProducts(ctx context.Context, w io.Writer) error {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, h := range exportHeaders {
		header.AddCell().SetValue(h)
	}
	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID)
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Slug)
		row.AddCell().SetValue(p.Category)
		row.AddCell().SetValue(p.Price.StringFixed(2))
		row.AddCell().SetValue(p.DiscountPercent.StringFixed(2))
		row.AddCell().SetValue(p.DiscountPrice.StringFixed(2))
		row.AddCell().SetValue(p.Stock)
		row.AddCell().SetValue(p.IsPublished)
		row.AddCell().SetValue(p.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func checkPricing(price, percent decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", apperr.ErrValidation)
	}
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return fmt.Errorf("%w: discountPercent must be between 0 and 100", apperr.ErrValidation)
	}
	return nil
}
