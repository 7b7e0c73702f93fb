package cart

import "github.com/mmcdole/folio/internal/domain"

// Catalog returns the shop's products
func Catalog() []domain.Product {
	return []domain.Product{
		{
			ID:          "1",
			Name:        "Fish Biscuits",
			Description: "Crunchy, protein-rich fish biscuits made from premium fish meat. Perfect for snacking.",
			PriceCents:  499,
			Category:    "Snacks",
			Stock:       50,
		},
		{
			ID:          "2",
			Name:        "Solar-Dried Omena",
			Description: "Naturally sun-dried Omena fish, preserving all nutrients and flavor.",
			PriceCents:  799,
			Category:    "Dried Fish",
			Stock:       30,
		},
		{
			ID:          "3",
			Name:        "Deep-Fried Omena",
			Description: "Crispy deep-fried Omena fish, a protein-rich snack or meal accompaniment.",
			PriceCents:  699,
			Category:    "Fried Fish",
			Stock:       40,
		},
		{
			ID:          "4",
			Name:        "Deep-Fried Fulu",
			Description: "Traditional deep-fried Fulu fish, crispy and flavorful. A local delicacy.",
			PriceCents:  899,
			Category:    "Fried Fish",
			Stock:       25,
		},
		{
			ID:          "5",
			Name:        "Myco-Protein Fish Feed",
			Description: "High-quality fish feed enriched with myco-protein for healthy fish growth.",
			PriceCents:  2999,
			Category:    "Fish Feed",
			Stock:       100,
		},
	}
}

// FindProduct looks a product up in the catalog
func FindProduct(id string) (domain.Product, bool) {
	for _, p := range Catalog() {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}
