package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/storefront-sync/internal/cache"
	"github.com/example/storefront-sync/internal/cart"
	"github.com/example/storefront-sync/internal/checkout"
	"github.com/example/storefront-sync/internal/config"
	"github.com/example/storefront-sync/internal/gateway"
	"github.com/example/storefront-sync/internal/infrastructure/journal"
	"github.com/example/storefront-sync/internal/infrastructure/kafka"
	"github.com/example/storefront-sync/internal/payment"
	"github.com/example/storefront-sync/internal/session"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.Load()
	ctx := context.Background()

	sess := session.NewContext()
	if cfg.AccessToken == "" {
		logger.Fatal("STOREFRONT_ACCESS_TOKEN is required")
	}
	if err := sess.SetCredential(cfg.AccessToken); err != nil {
		logger.Fatal("access token does not parse as a JWT", zap.Error(err))
	}

	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	recorder, cleanup, err := buildJournal(ctx, cfg, producer)
	if err != nil {
		logger.Fatal("init audit journal", zap.Error(err))
	}
	defer cleanup()

	var snaps cart.Snapshots
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("parse REDIS_URL", zap.Error(err))
		}
		snaps = cache.NewSnapshot(redis.NewClient(opts))
	}

	client := gateway.NewClient(cfg.APIBaseURL, logger)
	store := cart.NewStore(sess, client, recorder, snaps, logger)
	ui := &consolePaymentUI{in: bufio.NewReader(os.Stdin)}
	coordinator := checkout.NewCoordinator(sess, store, client, ui, recorder, cfg.Currency, logger)

	if err := run(ctx, os.Args[1:], store, coordinator); err != nil {
		if errors.Is(err, checkout.ErrCancelled) {
			fmt.Println("checkout cancelled; cart left untouched")
			return
		}
		logger.Fatal("command failed", zap.Error(err))
	}
}

func run(ctx context.Context, args []string, store *cart.Store, coordinator *checkout.Coordinator) error {
	if len(args) == 0 {
		return errors.New("usage: storefront <show|add|set-qty|remove|checkout> [args]")
	}

	switch args[0] {
	case "show":
		if err := store.Load(ctx); err != nil {
			// A dead server should not mean a blank screen when we still
			// hold the last acknowledged cart.
			if errors.Is(err, gateway.ErrUnavailable) {
				if lines, snapErr := store.LastKnown(ctx); snapErr == nil {
					fmt.Println("storefront unreachable; showing last known cart")
					printLines(lines)
					return nil
				}
			}
			return err
		}
		printCart(store)
		return nil

	case "add":
		if len(args) != 5 {
			return errors.New("usage: storefront add <productID> <name> <unitPriceMinor> <quantity>")
		}
		price, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("unit price: %w", err)
		}
		qty, err := strconv.Atoi(args[4])
		if err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		if err := store.Load(ctx); err != nil {
			return err
		}
		return store.Add(ctx, cart.Line{
			ProductID:   args[1],
			ProductName: args[2],
			UnitPrice:   price,
			Quantity:    qty,
		})

	case "set-qty":
		if len(args) != 3 {
			return errors.New("usage: storefront set-qty <productID> <quantity>")
		}
		qty, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		if err := store.Load(ctx); err != nil {
			return err
		}
		return store.SetQuantity(ctx, args[1], qty)

	case "remove":
		if len(args) != 2 {
			return errors.New("usage: storefront remove <productID>")
		}
		if err := store.Load(ctx); err != nil {
			return err
		}
		return store.Remove(ctx, args[1])

	case "checkout":
		if err := store.Load(ctx); err != nil {
			return err
		}
		printCart(store)
		attempt, err := coordinator.Begin()
		if err != nil {
			return err
		}
		receipt, err := attempt.Run(ctx, payment.BuyerProfile{})
		if err != nil {
			return err
		}
		fmt.Printf("payment confirmed: order %s, confirmation %s, %d %s\n",
			receipt.OrderID, receipt.ConfirmationID, receipt.AmountMinor, receipt.Currency)
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printCart(store *cart.Store) {
	printLines(store.Lines())
}

func printLines(lines []cart.Line) {
	if len(lines) == 0 {
		fmt.Println("cart is empty")
		return
	}
	var total int64
	for _, l := range lines {
		fmt.Printf("  %-20s %-30s x%-3d @ %d\n", l.ProductID, l.ProductName, l.Quantity, l.UnitPrice)
		total += l.UnitPrice * int64(l.Quantity)
	}
	fmt.Printf("total: %d minor units\n", total)
}

func buildJournal(ctx context.Context, cfg config.Config, producer *kafka.Producer) (journal.Recorder, func(), error) {
	switch cfg.JournalBackend {
	case "postgres":
		db, err := journal.Connect(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return journal.NewPostgres(db, producer), func() { db.Close() }, nil
	case "dynamo":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, err
		}
		return journal.NewDynamo(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable), func() {}, nil
	default:
		return journal.NewMemory(producer), func() {}, nil
	}
}

// consolePaymentUI stands in for the hosted payment widget when driving the
// engine from a terminal: it shows the order and reads the outcome the
// operator observed in the provider dashboard.
type consolePaymentUI struct {
	in *bufio.Reader
}

func (c *consolePaymentUI) Open(ctx context.Context, order payment.Order, buyer payment.BuyerProfile) (payment.Assertion, error) {
	fmt.Printf("pay order %s: %d %s\n", order.OrderID, order.AmountMinor, order.Currency)
	fmt.Println("paste the assertion payload JSON, or type 'cancel' / 'fail <message>':")

	type read struct {
		line string
		err  error
	}
	ch := make(chan read, 1)
	go func() {
		line, err := c.in.ReadString('\n')
		ch <- read{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return payment.Assertion{}, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return payment.Assertion{}, &payment.ProviderError{Code: "input", Message: r.err.Error()}
		}
		switch {
		case r.line == "cancel":
			return payment.Assertion{}, payment.ErrDismissed
		case strings.HasPrefix(r.line, "fail"):
			return payment.Assertion{}, &payment.ProviderError{
				Code:    "provider_failure",
				Message: strings.TrimSpace(strings.TrimPrefix(r.line, "fail")),
			}
		default:
			return payment.Assertion{
				OrderID: order.OrderID,
				Payload: json.RawMessage(r.line),
			}, nil
		}
	}
}
