package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/checkout"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/reviews"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func printProducts(out io.Writer, products []models.Product) {
	if len(products) == 0 {
		fmt.Fprintln(out, "No products match.")
		return
	}

	w := table(out)
	fmt.Fprintln(w, "SLUG\tNAME\tCATEGORY\tPRICE\tRATING\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.1f\t%d\n", p.Slug, p.Name, p.Category, money(p.Price), p.Rating, p.Stock)
	}
	w.Flush()
}

func printDetail(out io.Writer, d *catalog.Detail, saved bool) {
	p := d.Product
	fmt.Fprintf(out, "%s  %s\n", p.Name, money(p.Price))
	if p.Category != "" {
		fmt.Fprintf(out, "Category: %s\n", p.Category)
	}
	fmt.Fprintf(out, "Rating: %.1f\n", p.Rating)
	if p.InStock() {
		fmt.Fprintf(out, "In stock: %d\n", p.Stock)
	} else {
		fmt.Fprintln(out, "Out of stock")
	}
	if saved {
		fmt.Fprintln(out, "On your wishlist")
	}
	if summary := p.Summary(); summary != "" {
		fmt.Fprintf(out, "\n%s\n", summary)
	}

	if len(d.Related) > 0 {
		fmt.Fprintln(out, "\nYou may also like:")
		for _, r := range d.Related {
			fmt.Fprintf(out, "  %s (%s) %s\n", r.Name, r.Slug, money(r.Price))
		}
	}
}

func printReviews(out io.Writer, s reviews.Summary, list []models.Review) {
	fmt.Fprintf(out, "\nReviews: %d, average %.1f\n", s.Count, s.Average)
	if s.Count == 0 {
		return
	}
	for star := reviews.MaxRating; star >= reviews.MinRating; star-- {
		n := s.Histogram[star-1]
		fmt.Fprintf(out, "  %d %s %d\n", star, strings.Repeat("#", n), n)
	}
	for _, r := range list {
		fmt.Fprintf(out, "  [%d/5] %s  (%s)\n", r.Rating, r.Comment, r.CreatedAt.Format("2006-01-02"))
	}
}

func printCart(out io.Writer, lines []models.CartLine) {
	if len(lines) == 0 {
		fmt.Fprintln(out, "Your cart is empty.")
		return
	}

	w := table(out)
	fmt.Fprintln(w, "SLUG\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range lines {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", l.Product.Slug, l.Product.Name, l.Quantity, money(l.Product.Price), money(l.Subtotal()))
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d item(s), total %s\n", cart.Count(lines), money(cart.Total(lines)))
}

func printWishlist(out io.Writer, entries []models.WishlistEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "Your wishlist is empty.")
		return
	}

	w := table(out)
	fmt.Fprintln(w, "SLUG\tNAME\tPRICE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Product.Slug, e.Product.Name, money(e.Product.Price))
	}
	w.Flush()
}

func printQuote(out io.Writer, q checkout.Quote) {
	fmt.Fprintf(out, "Subtotal: %s\n", money(q.Subtotal))
	if q.Shipping.IsZero() {
		fmt.Fprintln(out, "Shipping: free")
	} else {
		fmt.Fprintf(out, "Shipping: %s\n", money(q.Shipping))
	}
	fmt.Fprintf(out, "Total:    %s\n", money(q.Total))
}

func printOrders(out io.Writer, orders []models.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(out, "No orders yet.")
		return
	}

	w := table(out)
	fmt.Fprintln(w, "ORDER\tDATE\tSTATUS\tITEMS\tTOTAL")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", o.ID, o.CreatedAt.Format("2006-01-02 15:04"), o.Status, len(o.Items), money(o.TotalAmount))
	}
	w.Flush()
}

func printOrder(out io.Writer, o *models.Order) {
	fmt.Fprintf(out, "Order %s (%s)\n", o.ID, o.Status)
	fmt.Fprintf(out, "Placed %s\n\n", o.CreatedAt.Format("2006-01-02 15:04"))

	w := table(out)
	fmt.Fprintln(w, "NAME\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range o.Items {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", l.Product.Name, l.Quantity, money(l.Price), money(l.Subtotal()))
	}
	w.Flush()

	a := o.ShippingAddress
	fmt.Fprintf(out, "\nTotal %s\nShip to: %s, %s, %s, %s %s, %s\n",
		money(o.TotalAmount), a.FullName, a.Address, a.City, a.State, a.ZipCode, a.Country)
}
