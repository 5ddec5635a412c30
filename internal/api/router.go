// Package api exposes the HTTP surface: enrollment, event and summary
// queries, natural-language questions and the live event feed.
package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/homewatch/internal/api/handlers"
	"github.com/your-org/homewatch/internal/api/ws"
	"github.com/your-org/homewatch/internal/auth"
	"github.com/your-org/homewatch/internal/queue"
	"github.com/your-org/homewatch/internal/retrieval"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/internal/summary"
)

type RouterConfig struct {
	APIKey     string
	DB         *storage.PostgresStore
	MinIO      *storage.MinIOStore
	Producer   *queue.Producer
	Hub        *ws.Hub
	Engine     *retrieval.Engine
	Summarizer *summary.Summarizer
	// EmbedFn extracts a face embedding from image bytes (vision scanner).
	EmbedFn func(imageData []byte) ([]float32, error)
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// Live event feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Persons & faces
	personH := handlers.NewPersonHandler(cfg.DB, cfg.MinIO)
	personH.EmbedFn = cfg.EmbedFn
	v1.GET("/persons", personH.List)
	v1.GET("/persons/:id", personH.Get)
	v1.POST("/persons/:id/faces", personH.AddFace)

	// Events & evidence
	eventH := handlers.NewEventHandler(cfg.DB, cfg.MinIO)
	v1.GET("/events", eventH.List)
	v1.GET("/events/:id", eventH.Get)
	v1.GET("/events/:id/evidence", eventH.Evidence)

	// Daily summaries
	summaryH := handlers.NewSummaryHandler(cfg.DB, cfg.Summarizer)
	v1.GET("/summaries/:date", summaryH.Get)
	v1.POST("/summaries/:date", summaryH.Generate)

	// Natural-language questions
	askH := handlers.NewAskHandler(cfg.Engine)
	v1.POST("/ask", askH.Ask)

	return r
}
