package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/checkout"
	"github.com/safar/quickcart/internal/models"
	"github.com/safar/quickcart/internal/orders"
	"github.com/safar/quickcart/internal/reviews"
	"github.com/safar/quickcart/internal/session"
	"github.com/spf13/pflag"
)

func wantArgs(args []string, n int, usage string) error {
	if len(args) < n {
		return apperr.Validation("", "Usage: quickcart %s", usage)
	}
	return nil
}

func (a *app) signUp(args []string) error {
	if err := wantArgs(args, 3, "signup <email> <password> <confirm>"); err != nil {
		return err
	}

	form := session.SignUpForm{Email: args[0], Password: args[1], ConfirmPassword: args[2]}
	if err := a.session.SignUp(a.ctx, form); err != nil {
		return err
	}
	return a.afterSignIn()
}

func (a *app) signIn(args []string) error {
	if err := wantArgs(args, 2, "signin <email> <password>"); err != nil {
		return err
	}

	if err := a.session.SignIn(a.ctx, args[0], args[1]); err != nil {
		return err
	}
	return a.afterSignIn()
}

// afterSignIn saves the token and moves any anonymous cart lines of this
// device into the account's cart.
func (a *app) afterSignIn() error {
	id, _ := a.session.Identity()
	if err := a.state.saveToken(a.session.Token()); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s\n", id.Email)

	local, err := a.localCart()
	if err != nil {
		a.logger.Debug("device cart unavailable, skipping merge", "error", err)
		return nil
	}
	moved, err := cart.Merge(a.ctx, local, a.cart)
	if err != nil {
		return err
	}
	if moved > 0 {
		fmt.Fprintf(a.out, "Moved %d item(s) from this device's cart into your account.\n", moved)
	}
	return nil
}

func (a *app) signOut() error {
	a.session.SignOut(a.ctx)
	if err := a.state.clearToken(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *app) browse(args []string) error {
	fs := pflag.NewFlagSet("browse", pflag.ContinueOnError)
	category := fs.String("category", "", "category name (substring match)")
	minPrice := fs.String("min-price", "", "lowest price")
	maxPrice := fs.String("max-price", "", "highest price")
	minRating := fs.String("min-rating", "", "lowest rating, 0-5")
	search := fs.String("search", "", "text to look for in product names")
	sortBy := fs.String("sort", string(models.SortByName), "name, price-low, price-high or rating")
	pages := fs.Int("pages", 1, "number of pages to load")
	if err := fs.Parse(args); err != nil {
		return apperr.Validation("", "%v", err)
	}

	filter := models.ProductFilter{}
	options := []struct{ key, value string }{
		{"category", *category},
		{"minPrice", *minPrice},
		{"maxPrice", *maxPrice},
		{"minRating", *minRating},
		{"search", *search},
		{"sortBy", *sortBy},
	}
	for _, o := range options {
		if err := catalog.SetOption(&filter, o.key, o.value); err != nil {
			return err
		}
	}

	q := catalog.NewQuery(a.catalogSource(), a.logger)
	if err := q.SetFilter(a.ctx, filter); err != nil {
		return err
	}
	for i := 1; i < *pages && q.HasMore(); i++ {
		if err := q.NextPage(a.ctx); err != nil {
			return err
		}
	}

	printProducts(a.out, q.Products())
	if q.HasMore() {
		fmt.Fprintf(a.out, "\nMore results: rerun with --pages %d\n", q.Page()+1)
	}
	fmt.Fprintf(a.out, "\nShare: ?%s\n", catalog.Encode(q.Filter(), 0, 0).Encode())
	return nil
}

func (a *app) show(args []string) error {
	if err := wantArgs(args, 1, "show <slug>"); err != nil {
		return err
	}

	detail, err := catalog.LoadDetail(a.ctx, a.gw, args[0])
	if err != nil {
		return err
	}

	thread := reviews.NewThread(a.gw, a.session, a.logger)
	if err := thread.Load(a.ctx, detail.Product.ID); err != nil {
		return err
	}

	printDetail(a.out, detail, a.wishlist.Contains(detail.Product.ID))
	printReviews(a.out, thread.Summary(), thread.Reviews())
	return nil
}

func (a *app) review(args []string) error {
	if err := wantArgs(args, 2, "review <slug> <rating> [comment]"); err != nil {
		return err
	}

	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return apperr.Validation("rating", "Rating must be a whole number.")
	}

	product, err := a.gw.GetProductBySlug(a.ctx, args[0])
	if err != nil {
		return err
	}

	thread := reviews.NewThread(a.gw, a.session, a.logger)
	if err := thread.Load(a.ctx, product.ID); err != nil {
		return err
	}
	if err := thread.Submit(a.ctx, rating, strings.Join(args[2:], " ")); err != nil {
		return err
	}

	summary := thread.Summary()
	fmt.Fprintf(a.out, "Thanks! %s now has %d review(s), average %.1f\n", product.Name, summary.Count, summary.Average)
	return nil
}

func (a *app) add(args []string) error {
	if err := wantArgs(args, 1, "add <slug> [quantity]"); err != nil {
		return err
	}

	quantity := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return apperr.Validation("quantity", "Quantity must be at least 1.")
		}
		quantity = n
	}

	product, err := a.gw.GetProductBySlug(a.ctx, args[0])
	if err != nil {
		return err
	}
	if !product.InStock() {
		return apperr.Validation("quantity", "%s is out of stock.", product.Name)
	}
	if clamped := cart.ClampQuantity(quantity, product.Stock); clamped != quantity {
		fmt.Fprintf(a.out, "Only %d in stock.\n", product.Stock)
		quantity = clamped
	}

	c, err := a.activeCart()
	if err != nil {
		return err
	}
	if err := c.Add(a.ctx, *product, quantity); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Added %d x %s. Cart: %d item(s), %s\n", quantity, product.Name, c.Count(), money(c.Total()))
	return nil
}

func (a *app) cartCommand(args []string) error {
	c, err := a.activeCart()
	if err != nil {
		return err
	}

	if len(args) > 0 {
		switch args[0] {
		case "set":
			if err := wantArgs(args, 3, "cart set <slug> <quantity>"); err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[2])
			if err != nil {
				return apperr.Validation("quantity", "Quantity must be a whole number.")
			}
			product, err := a.gw.GetProductBySlug(a.ctx, args[1])
			if err != nil {
				return err
			}
			if quantity > 0 {
				quantity = cart.ClampQuantity(quantity, product.Stock)
			}
			if err := c.SetQuantity(a.ctx, product.ID, quantity); err != nil {
				return err
			}
		case "remove":
			if err := wantArgs(args, 2, "cart remove <slug>"); err != nil {
				return err
			}
			product, err := a.gw.GetProductBySlug(a.ctx, args[1])
			if err != nil {
				return err
			}
			if err := c.Remove(a.ctx, product.ID); err != nil {
				return err
			}
		case "clear":
			if err := c.Clear(a.ctx); err != nil {
				return err
			}
		default:
			return apperr.Validation("", "Usage: quickcart cart [set <slug> <qty> | remove <slug> | clear]")
		}
	}

	printCart(a.out, c.Lines())
	return nil
}

func (a *app) wish(args []string) error {
	if _, ok := a.session.Identity(); !ok {
		return fmt.Errorf("wishlist: %w", apperr.ErrAuthRequired)
	}

	if len(args) > 0 {
		if args[0] != "toggle" || len(args) < 2 {
			return apperr.Validation("", "Usage: quickcart wish [toggle <slug>]")
		}
		product, err := a.gw.GetProductBySlug(a.ctx, args[1])
		if err != nil {
			return err
		}
		saved, err := a.wishlist.Toggle(a.ctx, product.ID)
		if err != nil {
			return err
		}
		if saved {
			fmt.Fprintf(a.out, "Saved %s to your wishlist.\n", product.Name)
		} else {
			fmt.Fprintf(a.out, "Removed %s from your wishlist.\n", product.Name)
		}
	}

	printWishlist(a.out, a.wishlist.Entries())
	return nil
}

func (a *app) checkout(args []string) error {
	flow := checkout.NewFlow(a.gw, a.cart, a.session, a.logger)
	form := flow.Form()

	fs := pflag.NewFlagSet("checkout", pflag.ContinueOnError)
	fs.StringVar(&form.FullName, "full-name", form.FullName, "recipient name")
	fs.StringVar(&form.Email, "email", form.Email, "contact email")
	fs.StringVar(&form.Phone, "phone", form.Phone, "contact phone")
	fs.StringVar(&form.Address, "address", form.Address, "street address")
	fs.StringVar(&form.City, "city", form.City, "city")
	fs.StringVar(&form.State, "state", form.State, "state or region")
	fs.StringVar(&form.ZipCode, "zip", form.ZipCode, "ZIP or postal code")
	fs.StringVar(&form.Country, "country", form.Country, "country")
	if err := fs.Parse(args); err != nil {
		return apperr.Validation("", "%v", err)
	}
	flow.SetForm(form)

	printQuote(a.out, flow.Quote())

	orderID, err := flow.Submit(a.ctx)
	if err != nil {
		if flow.State() == checkout.Failed {
			fmt.Fprintln(a.out, "Your order could not be placed. Your cart was not changed.")
		}
		return err
	}

	fmt.Fprintf(a.out, "Order placed: %s\n", orderID)
	return nil
}

func (a *app) orders(args []string) error {
	history := orders.NewHistory(a.gw, a.session, a.logger)

	if len(args) > 0 {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return apperr.Validation("order_id", "%q is not an order id.", args[0])
		}
		order, err := history.Get(a.ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			fmt.Fprintln(a.out, "Order not found.")
			return nil
		}
		if err != nil {
			return err
		}
		printOrder(a.out, order)
		return nil
	}

	list, err := history.List(a.ctx)
	if err != nil {
		return err
	}
	printOrders(a.out, list)
	return nil
}
