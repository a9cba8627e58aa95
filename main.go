package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"

	"github.com/GetwithitMan/gwi-pos-sub008/internal/terminal"
	"github.com/GetwithitMan/gwi-pos-sub008/pkg"
	"github.com/GetwithitMan/gwi-pos-sub008/pkg/event"
)

const (
	appNamespace = "TERMINAL"
	appName      = "terminal"
	appVersion   = "0.1.0"
)

const defaultPreAuthAmount = 25.0

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	seedCtx, cancelSeeds := context.WithCancel(ctx)
	defer cancelSeeds()

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")

	pub, err := pkg.NewNATSPublisher(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS publisher: %v", appName, appVersion, err)
	}

	stream, err := pkg.NewNATSStream(pkg.NATSStreamConfig{
		URL:          natsURL,
		StreamName:   config.GetStringOrDef("events.stream", "TERMINAL_EVENTS"),
		Topic:        event.TerminalOrdersTopic,
		ConsumerName: config.GetStringOrDef("events.consumer", "terminal"),
		MaxAge:       24 * time.Hour,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS stream: %v", appName, appVersion, err)
	}

	ordersURL := config.GetStringOrDef("services.orders.url", "")
	if ordersURL == "" {
		log.Fatalf("%s(%s) requires services.orders.url", appName, appVersion)
	}
	orderDA := terminal.NewOrderDataAccess(apt.NewServiceClient(ordersURL))

	splitsURL := config.GetStringOrDef("services.splits.url", ordersURL)
	splitDA := terminal.NewSplitDataAccess(apt.NewServiceClient(splitsURL))

	paymentsURL := config.GetStringOrDef("services.payments.url", ordersURL)
	paymentDA := terminal.NewPaymentDataAccess(apt.NewServiceClient(paymentsURL))

	store := terminal.NewDraftStore()

	workflows := terminal.NewWorkflowRegistry()
	workflows.ApplyConfigOverrides(config)

	coord := terminal.NewPersistenceCoordinator(store, orderDA, stream, logger)
	splits := terminal.NewSplitOrchestrator(store, coord, splitDA, orderDA, stream, logger)
	payAll := terminal.NewPayAllQueue(store, splits, paymentDA, stream, logger)

	kitchen := terminal.NewNATSKitchenDispatcher(pub, logger)

	preAuth := defaultPreAuthAmount
	if raw := config.GetStringOrDef("tabs.preauth_amount", ""); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			log.Fatalf("%s(%s) invalid tabs.preauth_amount %q: %v", appName, appVersion, raw, err)
		}
		preAuth = parsed
	}

	auths := terminal.NewAuthRegistry()
	tabs := terminal.NewTabOrchestrator(store, coord, orderDA, paymentDA, kitchen, auths, stream, logger, preAuth)

	openOrders := terminal.NewOpenOrdersCache(stream, orderDA, logger)

	publisherLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	}

	streamLifecycle := apt.LifecycleHooks{
		OnStop: func(context.Context) error {
			return stream.Close()
		},
	}

	cacheLifecycle := apt.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if err := openOrders.Warm(ctx); err != nil {
				logger.Error("cannot warm open orders cache", "error", err)
			}
			return openOrders.Start(ctx)
		},
	}

	tabsLifecycle := apt.LifecycleHooks{
		OnStop: tabs.Drain,
	}

	hd := terminal.HandlerDeps{
		Store:        store,
		Workflows:    workflows,
		Coordinator:  coord,
		Splits:       splits,
		SplitService: splitDA,
		PayAll:       payAll,
		Tabs:         tabs,
		Gateway:      paymentDA,
		Kitchen:      kitchen,
		Orders:       orderDA,
		OpenOrders:   openOrders,
		Publisher:    stream,
	}

	handler := terminal.NewHandler(hd, config, logger)

	// Setup demo seeding if enabled
	demoEnabled, _ := config.GetString("seeding.demo")
	var seedHooks apt.LifecycleHooks
	if demoEnabled == "true" {
		logger.Info("Demo seeding enabled for terminal service")
		scenario := config.GetStringOrDef("seeding.demo_scenario", terminal.DemoScenarioDineIn)
		seedHooks = apt.LifecycleHooks{
			OnStart: terminal.DemoSeedingFunc(seedCtx, store, scenario, logger),
			OnStop: func(context.Context) error {
				cancelSeeds()
				return nil
			},
		}
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true, // Internal API service
	})

	// Defense-in-depth: restrict to internal networks only.
	// This complements (does not replace) network policies at the infrastructure level.
	stack = append(stack, middleware.InternalOnly())

	lifecycles := []interface{}{
		publisherLifecycle,
		streamLifecycle,
		cacheLifecycle,
		tabsLifecycle,
	}
	if demoEnabled == "true" {
		lifecycles = append(lifecycles, seedHooks)
	}

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	err = ms.Run(ctx)
	if err != nil {
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
