package services_test

import (
	"context"
	"testing"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
	"bookstore/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookService(t *testing.T) {
	repo := repositories.NewMockBookRepository()
	svc := services.NewBookService(repo)
	ctx := context.Background()

	book := &models.Book{Title: "Dune", Author: "Frank Herbert", Price: decimal.NewFromInt(200000), Stock: 3}
	require.NoError(t, svc.CreateBook(ctx, book))
	assert.NotEmpty(t, book.ID)

	got, err := svc.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)

	got.Stock = 7
	require.NoError(t, svc.UpdateBook(ctx, got))
	got, err = svc.GetBookByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Stock)

	all, err := svc.GetAllBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, svc.DeleteBook(ctx, book.ID))
	_, err = svc.GetBookByID(ctx, book.ID)
	assert.ErrorIs(t, err, services.ErrBookNotFound)
	assert.ErrorIs(t, svc.DeleteBook(ctx, book.ID), services.ErrBookNotFound)
	assert.ErrorIs(t, svc.UpdateBook(ctx, &models.Book{ID: "missing", Title: "x"}), services.ErrBookNotFound)

	assert.Error(t, svc.CreateBook(ctx, &models.Book{Title: "Negative", Price: decimal.NewFromInt(-1)}))
}
