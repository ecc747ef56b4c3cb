package main

import (
	"flag"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"repmarket/db"
	"repmarket/db/migrations"
	"repmarket/internal/core"
	"repmarket/internal/events"
	"repmarket/internal/handlers"
	"repmarket/internal/memstore"
)

func main() {
	inMemory := flag.Bool("inmemory", false, "run on the in-memory store instead of Postgres")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var store core.Storage
	if *inMemory {
		logger.Warn("running on in-memory storage, nothing will be persisted")
		store = memstore.New()
	} else {
		connString := os.Getenv("POSTGRES_CONN")
		if connString == "" {
			logger.Fatal("POSTGRES_CONN env variable is not set")
		}

		dbConn, err := sqlx.Connect("postgres", connString)
		if err != nil {
			logger.Fatal("Cannot connect to DB", zap.Error(err))
		}
		defer dbConn.Close()

		migrations.Run()
		store = db.NewStorage(dbConn)
	}

	svc := core.New(store, events.NewZapPublisher(logger))
	h := handlers.NewHandler(svc)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// юридические лица
		r.Post("/entities/new", h.CreateEntityHandler)
		r.Get("/entities/my", h.GetUserEntitiesHandler)
		r.Patch("/entities/{entityId}/edit", h.EditEntityHandler)
		r.Put("/entities/{entityId}/default", h.SetDefaultEntityHandler)
		r.Delete("/entities/{entityId}", h.DeleteEntityHandler)
		// задания
		r.Post("/jobs/new", h.CreateJobHandler)
		r.Get("/jobs", h.GetOpenJobsHandler)
		r.Get("/jobs/my", h.GetUserJobsHandler)
		r.Get("/jobs/{jobId}", h.GetJobHandler)
		r.Put("/jobs/{jobId}/cancel", h.CancelJobHandler)
		r.Put("/jobs/{jobId}/dispute", h.DisputeJobHandler)
		r.Get("/jobs/{jobId}/quotes", h.GetQuotesForJobHandler)
		// предложения (quotes)
		r.Post("/quotes/new", h.CreateQuoteHandler)
		r.Get("/quotes/my", h.GetUserQuotesHandler)
		r.Put("/quotes/{quoteId}/withdraw", h.WithdrawQuoteHandler)
		r.Put("/quotes/{quoteId}/accept", h.AcceptQuoteHandler)
		// назначения
		r.Get("/assignments/my", h.GetUserAssignmentsHandler)
		r.Get("/assignments/{assignmentId}", h.GetAssignmentHandler)
		r.Put("/assignments/{assignmentId}/complete", h.CompleteAssignmentHandler)
	})

	serverAddr := os.Getenv("SERVER_ADDRESS")
	if serverAddr == "" {
		serverAddr = "0.0.0.0:8080"
	}

	logger.Info("Starting server", zap.String("addr", serverAddr))
	if err := http.ListenAndServe(serverAddr, r); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
