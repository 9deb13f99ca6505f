package handlers

import (
	"log"

	"bookstore/internal/middleware"
	"bookstore/internal/models"
	"bookstore/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// BookHandler handles HTTP requests for the catalog.
type BookHandler struct {
	service  *services.BookService
	validate *validator.Validate
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(service *services.BookService) *BookHandler {
	return &BookHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the catalog routes. Reads are public; writes
// need an administrator token.
func (h *BookHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	bookRoutes := router.Group("/books")
	bookRoutes.Get("/", h.HandleGetBooks)
	bookRoutes.Get("/:id", h.HandleGetBookByID)

	admin := []fiber.Handler{requireAuth, middleware.AdminRequired()}
	bookRoutes.Post("/", append(admin, h.HandleCreateBook)...)
	bookRoutes.Put("/:id", append(admin, h.HandleUpdateBook)...)
	bookRoutes.Delete("/:id", append(admin, h.HandleDeleteBook)...)
}

func (h *BookHandler) HandleGetBooks(c *fiber.Ctx) error {
	books, err := h.service.GetAllBooks(c.UserContext())
	if err != nil {
		log.Printf("Error getting books: %v", err)
		return serviceError(c, err, "Could not retrieve books")
	}
	return c.JSON(books)
}

func (h *BookHandler) HandleGetBookByID(c *fiber.Ctx) error {
	book, err := h.service.GetBookByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err, "Could not retrieve book")
	}
	return c.JSON(book)
}

func (h *BookHandler) HandleCreateBook(c *fiber.Ctx) error {
	var book models.Book
	if err := c.BodyParser(&book); err != nil {
		return invalidBody(c, err)
	}
	book.ID = ""
	if err := h.validate.Struct(book); err != nil {
		return validationFailed(c, err)
	}
	if err := h.service.CreateBook(c.UserContext(), &book); err != nil {
		log.Printf("Error creating book: %v", err)
		return serviceError(c, err, "Could not create book")
	}
	return c.Status(fiber.StatusCreated).JSON(book)
}

func (h *BookHandler) HandleUpdateBook(c *fiber.Ctx) error {
	var book models.Book
	if err := c.BodyParser(&book); err != nil {
		return invalidBody(c, err)
	}
	book.ID = c.Params("id")
	if err := h.validate.Struct(book); err != nil {
		return validationFailed(c, err)
	}
	if err := h.service.UpdateBook(c.UserContext(), &book); err != nil {
		log.Printf("Error updating book %s: %v", book.ID, err)
		return serviceError(c, err, "Could not update book")
	}
	return c.JSON(book)
}

func (h *BookHandler) HandleDeleteBook(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.service.DeleteBook(c.UserContext(), id); err != nil {
		log.Printf("Error deleting book %s: %v", id, err)
		return serviceError(c, err, "Could not delete book")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
