package handlers

import (
	"bytes"
	"log"

	"shophub/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// ProductHandler handles HTTP requests for the catalog.
type ProductHandler struct {
	service  *services.ProductService
	validate *validator.Validate
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterStoreRoutes registers the public storefront routes.
func (h *ProductHandler) RegisterStoreRoutes(store fiber.Router) {
	store.Get("/products", h.HandleListPublished)
	store.Get("/product/:slug", h.HandleGetBySlug)
}

// RegisterAdminRoutes registers the catalog management routes. The router must already
// enforce admin access.
func (h *ProductHandler) RegisterAdminRoutes(admin fiber.Router) {
	admin.Get("/products", h.HandleGetProducts)
	admin.Post("/products", h.HandleCreateProduct)
	admin.Get("/products/export", h.HandleExport)
	admin.Get("/product/:id", h.HandleGetProductByID)
	admin.Put("/product/update/publish/:id", h.HandleTogglePublish)
	admin.Put("/product/update/:id", h.HandleUpdateProduct)
	admin.Delete("/product/delete/:id", h.HandleDeleteProduct)
}

// HandleListPublished returns one page of published products.
func (h *ProductHandler) HandleListPublished(c *fiber.Ctx) error {
	products, page, err := h.service.ListPublishedProducts(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("limit", 10))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
		"total":   page.Total,
		"pages":   page.TotalPages,
	})
}

// HandleGetBySlug returns a published product.
func (h *ProductHandler) HandleGetBySlug(c *fiber.Ctx) error {
	product, err := h.service.GetPublishedProduct(c.UserContext(), c.Params("slug"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// HandleGetProducts returns every product, published or not.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		log.Printf("Error getting all products: %v", err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    products,
	})
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// HandleCreateProduct creates a new product.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	var req services.CreateProductRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	product, err := h.service.CreateProduct(c.UserContext(), req)
	if err != nil {
		log.Printf("Error creating product: %v", err)
		return errorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Product created successfully",
		"data":    product,
	})
}

// HandleUpdateProduct applies a partial update to a product.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	var req services.ProductUpdate
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}

	product, err := h.service.UpdateProduct(c.UserContext(), c.Params("id"), req)
	if err != nil {
		log.Printf("Error updating product %s: %v", c.Params("id"), err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Product updated successfully",
		"data":    product,
	})
}

// HandleTogglePublish flips the storefront visibility of a product.
func (h *ProductHandler) HandleTogglePublish(c *fiber.Ctx) error {
	product, err := h.service.TogglePublish(c.UserContext(), c.Params("id"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    product,
	})
}

// HandleDeleteProduct deletes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		log.Printf("Error deleting product %s: %v", c.Params("id"), err)
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Product deleted successfully",
	})
}

// HandleExport downloads the whole catalog as a spreadsheet.
func (h *ProductHandler) HandleExport(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.service.ExportProducts(c.UserContext(), &buf); err != nil {
		log.Printf("Error exporting products: %v", err)
		return errorResponse(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="products.xlsx"`)
	return c.Send(buf.Bytes())
}
