package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/safar/quickcart/internal/apiclient"
	"github.com/safar/quickcart/internal/apperr"
	"github.com/safar/quickcart/internal/auth"
	"github.com/safar/quickcart/internal/cart"
	"github.com/safar/quickcart/internal/catalog"
	"github.com/safar/quickcart/internal/config"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/devicestore"
	"github.com/safar/quickcart/internal/gateway"
	"github.com/safar/quickcart/internal/session"
	"github.com/safar/quickcart/internal/telemetry"
	"github.com/safar/quickcart/internal/wishlist"
	"github.com/spf13/pflag"
)

const usage = `Usage: quickcart [flags] <command> [args]

Commands:
  signup <email> <password> <confirm>   create an account and sign in
  signin <email> <password>             sign in
  signout                               forget the saved session
  browse [filters]                      list products
  show <slug>                           product details, related products and reviews
  review <slug> <rating> [comment]      review a product
  add <slug> [quantity]                 add a product to the cart
  cart [set <slug> <qty> | remove <slug> | clear]
  wish [toggle <slug>]                  show or change the wishlist
  checkout [address flags]              place an order for the cart
  orders [order-id]                     order history

Flags:
`

type app struct {
	ctx    context.Context
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	db       *sql.DB
	tokens   *auth.Tokens
	gw       *gateway.Postgres
	state    *stateDir
	session  *session.State
	cart     *cart.Store
	wishlist *wishlist.Store
	useAPI   bool

	devices *devicestore.Store
	local   *cart.LocalStore
}

func main() {
	envFile := pflag.String("env-file", ".env", "env file to load before reading the environment")
	stateDirPath := pflag.String("state-dir", defaultStateDir(), "directory for the device id and saved session")
	useAPI := pflag.Bool("api", false, "browse the catalog through the REST service instead of the database")
	verbose := pflag.BoolP("verbose", "v", false, "log diagnostics to stderr")
	pflag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		pflag.PrintDefaults()
	}
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	if pflag.NArg() == 0 {
		pflag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stderr)
	if err != nil {
		log.Fatalf("Set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	a, err := newApp(ctx, cfg, logger, *stateDirPath)
	if err != nil {
		log.Fatalf("Start: %v", err)
	}
	a.useAPI = *useAPI
	defer a.close()

	if err := a.run(pflag.Arg(0), pflag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperr.Message(err))
		if *verbose || apperr.KindOf(err) == apperr.KindTransport {
			logger.Error("command failed", "command", pflag.Arg(0), "error", err)
		}
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, statePath string) (*app, error) {
	state, err := openStateDir(statePath)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		db.Close()
		return nil, err
	}

	gw := gateway.NewPostgres(db, tokens, logger)
	sess := session.New(gw, logger)

	a := &app{
		ctx:      ctx,
		cfg:      cfg,
		logger:   logger,
		out:      os.Stdout,
		db:       db,
		tokens:   tokens,
		gw:       gw,
		state:    state,
		session:  sess,
		cart:     cart.NewStore(gw, sess, logger),
		wishlist: wishlist.NewStore(gw, sess, logger),
	}

	if err := a.restoreSession(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

// restoreSession signs the saved token back in. An expired or invalid
// token is discarded and the CLI continues signed out.
func (a *app) restoreSession() error {
	token, err := a.state.token()
	if err != nil || token == "" {
		return err
	}

	id, err := a.tokens.Parse(token)
	if errors.Is(err, auth.ErrInvalidToken) {
		a.logger.Info("saved session expired")
		return a.state.clearToken()
	}
	if err != nil {
		return err
	}

	a.session.Restore(a.ctx, id, token)
	return nil
}

func (a *app) close() {
	a.cart.Close()
	a.wishlist.Close()
	if a.devices != nil {
		a.devices.Close()
	}
	a.db.Close()
}

// activeCart is the signed-in cart, or the device's anonymous cart when
// nobody is signed in.
func (a *app) activeCart() (cart.Cart, error) {
	if _, ok := a.session.Identity(); ok {
		return a.cart, nil
	}
	return a.localCart()
}

func (a *app) localCart() (*cart.LocalStore, error) {
	if a.local != nil {
		return a.local, nil
	}

	devices, err := devicestore.Open(a.ctx, a.cfg.Redis.URL, a.cfg.Redis.Namespace)
	if err != nil {
		return nil, fmt.Errorf("open device cart: %w", err)
	}
	deviceID, err := a.state.deviceID()
	if err != nil {
		devices.Close()
		return nil, err
	}

	a.devices = devices
	a.local = cart.NewLocalStore(devices, a.gw, deviceID, a.logger)
	if err := a.local.Refresh(a.ctx); err != nil {
		return nil, err
	}
	return a.local, nil
}

func (a *app) catalogSource() catalog.Source {
	if a.useAPI {
		return apiclient.New(a.cfg.API.BaseURL, a.cfg.API.Timeout, a.logger)
	}
	return a.gw
}

func (a *app) run(command string, args []string) error {
	switch command {
	case "signup":
		return a.signUp(args)
	case "signin":
		return a.signIn(args)
	case "signout":
		return a.signOut()
	case "browse":
		return a.browse(args)
	case "show":
		return a.show(args)
	case "review":
		return a.review(args)
	case "add":
		return a.add(args)
	case "cart":
		return a.cartCommand(args)
	case "wish":
		return a.wish(args)
	case "checkout":
		return a.checkout(args)
	case "orders":
		return a.orders(args)
	default:
		return apperr.Validation("", "Unknown command %q. Run quickcart --help.", command)
	}
}
