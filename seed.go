package main

import (
	"context"
	"errors"
	"fmt"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/internal/services"

	"github.com/shopspring/decimal"
)

var sampleCatalog = []models.Book{
	{Title: "Mắt Biếc", Author: "Nguyễn Nhật Ánh", Category: "Tiểu thuyết", Price: decimal.NewFromInt(110000), Stock: 20},
	{Title: "Tôi Thấy Hoa Vàng Trên Cỏ Xanh", Author: "Nguyễn Nhật Ánh", Category: "Tiểu thuyết", Price: decimal.NewFromInt(125000), Stock: 15},
	{Title: "Dế Mèn Phiêu Lưu Ký", Author: "Tô Hoài", Category: "Thiếu nhi", Price: decimal.NewFromInt(45000), Stock: 30},
	{Title: "Số Đỏ", Author: "Vũ Trọng Phụng", Category: "Văn học", Price: decimal.NewFromInt(68000), Stock: 12},
	{Title: "Đắc Nhân Tâm", Author: "Dale Carnegie", Category: "Kỹ năng", Price: decimal.NewFromInt(86000), Stock: 40},
}

// seedCatalog inserts the sample books into an empty catalog and returns how
// many were added.
func seedCatalog(ctx context.Context, repo repositories.BookRepository) (int, error) {
	existing, err := repo.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i := range sampleCatalog {
		book := sampleCatalog[i]
		if err := repo.Create(ctx, &book); err != nil {
			return i, fmt.Errorf("failed to seed %q: %w", book.Title, err)
		}
	}
	return len(sampleCatalog), nil
}

func createAdmin(ctx context.Context, auth *services.AuthService, email, password string) error {
	if len(password) < 6 {
		return errors.New("--admin-password must be at least 6 characters")
	}
	admin := &models.Customer{Fullname: "Administrator", Email: email, Password: password}
	if err := auth.RegisterAdmin(ctx, admin); err != nil {
		return fmt.Errorf("failed to create administrator: %w", err)
	}
	return nil
}
