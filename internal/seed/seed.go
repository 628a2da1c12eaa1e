// Package seed loads a demo catalog from YAML into the database.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/safar/quickcart/internal/auth"
	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/store"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type File struct {
	Categories []Category `yaml:"categories"`
	Products   []Product  `yaml:"products"`
	Users      []User     `yaml:"users"`
}

type Category struct {
	Slug  string `yaml:"slug"`
	Name  string `yaml:"name"`
	Image string `yaml:"image"`
}

type Product struct {
	Slug             string   `yaml:"slug"`
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	ShortDescription string   `yaml:"short_description"`
	Category         string   `yaml:"category"`
	Price            string   `yaml:"price"`
	Stock            int      `yaml:"stock"`
	Rating           float64  `yaml:"rating"`
	Featured         bool     `yaml:"featured"`
	Images           []string `yaml:"images"`

	price decimal.Decimal
}

type User struct {
	Email    string     `yaml:"email"`
	Password string     `yaml:"password"`
	Cart     []CartLine `yaml:"cart"`
}

// CartLine references a product by slug.
type CartLine struct {
	Product  string `yaml:"product"`
	Quantity int    `yaml:"quantity"`
}

type Result struct {
	Categories int
	Products   int
	Users      int
	CartLines  int
}

func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes and checks a seed file. Missing product slugs are
// derived from names and missing descriptions are generated; references
// to unknown categories or products are errors.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	categories := make(map[string]string, len(file.Categories))
	for i := range file.Categories {
		c := &file.Categories[i]
		if c.Name == "" {
			return nil, fmt.Errorf("category %d: name is required", i+1)
		}
		if c.Slug == "" {
			c.Slug = catalog.Slug(c.Name)
		}
		categories[c.Slug] = c.Name
	}

	products := make(map[string]bool, len(file.Products))
	for i := range file.Products {
		p := &file.Products[i]
		if p.Name == "" {
			return nil, fmt.Errorf("product %d: name is required", i+1)
		}
		if p.Slug == "" {
			p.Slug = catalog.Slug(p.Name)
		}
		if products[p.Slug] {
			return nil, fmt.Errorf("product %q: duplicate slug", p.Slug)
		}
		products[p.Slug] = true

		price, err := decimal.NewFromString(p.Price)
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("product %q: invalid price %q", p.Slug, p.Price)
		}
		p.price = price

		categoryName, ok := categories[p.Category]
		if p.Category != "" && !ok {
			return nil, fmt.Errorf("product %q: unknown category %q", p.Slug, p.Category)
		}
		if p.Description == "" {
			kind := "product"
			if categoryName != "" {
				kind = strings.ToLower(categoryName)
			}
			p.Description = fmt.Sprintf("%s - High-quality %s with modern features.", p.Name, kind)
		}
	}

	for _, u := range file.Users {
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("user %q: email and password are required", u.Email)
		}
		for _, line := range u.Cart {
			if !products[line.Product] {
				return nil, fmt.Errorf("user %q: cart references unknown product %q", u.Email, line.Product)
			}
			if line.Quantity < 1 {
				return nil, fmt.Errorf("user %q: cart quantity for %q must be at least 1", u.Email, line.Product)
			}
		}
	}

	return &file, nil
}

// Apply writes file in one transaction. With reset, every storefront
// table is truncated first.
func Apply(ctx context.Context, db *sql.DB, file *File, reset bool) (Result, error) {
	var result Result

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		result = Result{}

		if reset {
			_, err := tx.ExecContext(ctx,
				`TRUNCATE reviews, order_items, orders, wishlist, cart_items, products, categories, users RESTART IDENTITY CASCADE`)
			if err != nil {
				return fmt.Errorf("reset tables: %w", err)
			}
		}

		categoryIDs := make(map[string]int64, len(file.Categories))
		for _, c := range file.Categories {
			created, err := store.CreateCategory(ctx, tx, c.Slug, c.Name, c.Image)
			if err != nil {
				return fmt.Errorf("seed category %q: %w", c.Slug, err)
			}
			categoryIDs[c.Slug] = created.ID
			result.Categories++
		}

		productIDs := make(map[string]int64, len(file.Products))
		for _, p := range file.Products {
			created, err := store.CreateProduct(ctx, tx, models.Product{
				Slug:             p.Slug,
				Name:             p.Name,
				Description:      p.Description,
				ShortDescription: p.ShortDescription,
				Price:            p.price,
				Stock:            p.Stock,
				Images:           p.Images,
				Rating:           p.Rating,
				CategoryID:       categoryIDs[p.Category],
				Featured:         p.Featured,
			})
			if err != nil {
				return fmt.Errorf("seed product %q: %w", p.Slug, err)
			}
			productIDs[p.Slug] = created.ID
			result.Products++
		}

		for _, u := range file.Users {
			hash, err := auth.HashPassword(u.Password)
			if err != nil {
				return err
			}
			user, err := store.CreateUser(ctx, tx, u.Email, hash)
			if err != nil {
				return fmt.Errorf("seed user %q: %w", u.Email, err)
			}
			result.Users++

			for _, line := range u.Cart {
				if err := store.InsertCartLine(ctx, tx, user.ID, productIDs[line.Product], line.Quantity); err != nil {
					return fmt.Errorf("seed cart of %q: %w", u.Email, err)
				}
				result.CartLines++
			}
		}

		return nil
	})

	return result, err
}
