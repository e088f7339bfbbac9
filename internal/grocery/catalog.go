package grocery

import "strings"

// Product is an item from the suggested-products catalog.
type Product struct {
	ID       string
	Name     string
	Category string
	Price    float64
}

// DefaultProducts is the fixed catalog offered on the order summary.
var DefaultProducts = []Product{
	{ID: "p1", Name: "Eggs", Category: "Dairy", Price: 2.49},
	{ID: "p2", Name: "Milk", Category: "Dairy", Price: 1.19},
	{ID: "p3", Name: "Greek Yogurt", Category: "Dairy", Price: 1.89},
	{ID: "p4", Name: "Whole Wheat Bread", Category: "Bakery", Price: 2.29},
	{ID: "p5", Name: "Bananas", Category: "Produce", Price: 1.49},
	{ID: "p6", Name: "Spinach", Category: "Produce", Price: 1.99},
	{ID: "p7", Name: "Cherry Tomatoes", Category: "Produce", Price: 2.19},
	{ID: "p8", Name: "Olive Oil", Category: "Pantry", Price: 6.99},
	{ID: "p9", Name: "Brown Rice", Category: "Pantry", Price: 2.59},
	{ID: "p10", Name: "Chicken Breast", Category: "Meat", Price: 5.99},
	{ID: "p11", Name: "Oat Milk", Category: "Dairy", Price: 2.09},
	{ID: "p12", Name: "Almonds", Category: "Snacks", Price: 4.49},
}

// Catalog searches a small, fixed product list. No paging.
type Catalog struct {
	products []Product
}

// NewCatalog creates a catalog over products. Nil means DefaultProducts.
func NewCatalog(products []Product) *Catalog {
	if products == nil {
		products = DefaultProducts
	}
	return &Catalog{products: append([]Product(nil), products...)}
}

// Search returns products whose name contains query, ignoring case. An empty
// query returns everything.
func (c *Catalog) Search(query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Product
	for _, p := range c.products {
		if q == "" || strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	return out
}

// Find looks a product up by id.
func (c *Catalog) Find(id string) (Product, bool) {
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
