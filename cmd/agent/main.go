package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rental-agent/internal/config"
	"rental-agent/internal/dispatch"
	"rental-agent/internal/httpx"
	kafkax "rental-agent/internal/kafka"
	"rental-agent/internal/llm"
	"rental-agent/internal/logging"
	"rental-agent/internal/orders"
	"rental-agent/internal/postgres"
	"rental-agent/internal/redisx"
	"rental-agent/internal/rules"
	"rental-agent/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logging.NewSugaredLogger(cfg.ServiceName)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalw("migrate", "err", err)
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalw("db connect", "err", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for lifecycle events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderEvents, 1024, log)
	prod.Start(ctx)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalw("timezone", "err", err)
	}

	svc := orders.NewService(&orders.Repo{DB: db}, orders.NewSKUSet(cfg.SKUs), log)
	svc.Events = prod
	svc.Producer = cfg.ServiceName
	svc.DefaultBufferHours = cfg.DefaultBufferHours

	disp := &dispatch.Dispatcher{
		Sessions: &session.RedisStore{RDB: rdb, TTL: cfg.SessionTTL},
		Orders:   svc,
		Retriever: &rules.HTTPRetriever{
			URL:  cfg.RetrievalURL,
			HTTP: &http.Client{Timeout: cfg.CollaboratorTimeout},
		},
		Extractor: &dispatch.CompleterExtractor{
			Completer: &llm.HTTPClient{
				URL:    cfg.CompletionURL,
				Model:  cfg.CompletionModel,
				APIKey: os.Getenv("COMPLETION_API_KEY"),
				HTTP:   &http.Client{Timeout: cfg.CollaboratorTimeout},
			},
		},
		Logger:  log,
		Loc:     loc,
		Timeout: cfg.CollaboratorTimeout,
		TopK:    cfg.RetrievalTopK,
	}

	router := httpx.NewRouter()
	ch := &httpx.ChatHandler{Dispatcher: disp, Orders: svc, Redis: rdb}
	ch.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Infow("http_listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("listen", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Infow("shutting_down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox -> flush & close writer
	cancel()
	prod.WaitClosed()
}
