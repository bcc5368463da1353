package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type productSeed struct {
	Name            string
	Description     string
	PictureURL      string
	Brand           string
	Type            string
	PriceCents      int64
	QuantityInStock int
}

// Apply inserts basic catalog data for manual testing. It is a no-op when the
// catalog already has products.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return nil
	}

	products := []productSeed{
		{
			Name:            "Speedster Board 2000",
			Description:     "High-performance longboard with responsive trucks",
			PictureURL:      "/images/products/sb-ang1.png",
			Brand:           "Angular",
			Type:            "Boards",
			PriceCents:      20000,
			QuantityInStock: 100,
		},
		{
			Name:            "Green Angular Board 3000",
			Description:     "Lightweight deck for daily commutes",
			PictureURL:      "/images/products/sb-ang2.png",
			Brand:           "Angular",
			Type:            "Boards",
			PriceCents:      15000,
			QuantityInStock: 100,
		},
		{
			Name:            "Core Board Speed Rush 3",
			Description:     "Stiff deck, stable at speed",
			PictureURL:      "/images/products/sb-core1.png",
			Brand:           "NetCore",
			Type:            "Boards",
			PriceCents:      18000,
			QuantityInStock: 100,
		},
		{
			Name:            "Blue Code Gloves",
			Description:     "Padded slide gloves",
			PictureURL:      "/images/products/glove-code1.png",
			Brand:           "VS Code",
			Type:            "Gloves",
			PriceCents:      1800,
			QuantityInStock: 200,
		},
		{
			Name:            "Green React Woolen Hat",
			Description:     "Warm knitted hat",
			PictureURL:      "/images/products/hat-react1.png",
			Brand:           "React",
			Type:            "Hats",
			PriceCents:      800,
			QuantityInStock: 200,
		},
		{
			Name:            "Purple React Woolen Beanie",
			Description:     "Snug beanie for cold sessions",
			PictureURL:      "/images/products/hat-react2.png",
			Brand:           "React",
			Type:            "Hats",
			PriceCents:      1500,
			QuantityInStock: 200,
		},
	}

	for _, p := range products {
		if _, err := pool.Exec(ctx, `
INSERT INTO products (name, description, picture_url, brand, type, price_cents, quantity_in_stock)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, p.Name, p.Description, p.PictureURL, p.Brand, p.Type, p.PriceCents, p.QuantityInStock); err != nil {
			return fmt.Errorf("insert product %q: %w", p.Name, err)
		}
	}

	return nil
}
