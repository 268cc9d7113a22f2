// internal/catalog/service.go
package catalog

import (
	"context"
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, req NewBook) (*BookView, error)
	GetBook(ctx context.Context, id string) (*BookView, error)
	ListBooks(ctx context.Context) []BookView
	Search(ctx context.Context, query string) []BookView
}
