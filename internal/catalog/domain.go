// internal/catalog/domain.go
package catalog

import (
	"strings"

	"infobooks/internal/domain"
)

// Availability labels shown next to a title.
const (
	StatusAvailable   = "available"
	StatusUnavailable = "unavailable"
)

// BookView is a catalog entry as shown to readers.
type BookView struct {
	domain.Book
	Status string `json:"status"`
}

func newBookView(b domain.Book) BookView {
	status := StatusUnavailable
	if b.AvailableQty > 0 {
		status = StatusAvailable
	}
	return BookView{Book: b, Status: status}
}

// NewBook holds the fields an administrator supplies to add a title.
type NewBook struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Category    string `json:"category"`
	Year        int    `json:"year"`
	Description string `json:"description"`
	TotalQty    int    `json:"total_qty"`
}

func (n NewBook) normalize() NewBook {
	n.Title = strings.TrimSpace(n.Title)
	n.Author = strings.TrimSpace(n.Author)
	n.Category = strings.TrimSpace(n.Category)
	n.Description = strings.TrimSpace(n.Description)
	return n
}

func (n NewBook) valid() bool {
	return n.Title != "" && n.Author != "" && n.TotalQty >= 0
}
