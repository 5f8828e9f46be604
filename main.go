package main

import (
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"mesoserve/internal/config"
	"mesoserve/internal/http/handlers"
	appmw "mesoserve/internal/http/middleware"
	"mesoserve/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	doc, err := config.LoadDocument(cfg.EntitiesFile)
	if err != nil {
		log.Fatalf("failed to load entity configuration: %v", err)
	}

	stores, err := store.Open(doc)
	if err != nil {
		log.Fatalf("failed to connect data sources: %v", err)
	}

	handlers.InitPrometheusMetrics()

	r := router.New()

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.GET("/v1/data", handlers.DataHandler(doc, stores))
	r.POST("/v1/stats", handlers.StatsHandler(doc, stores))

	update := appmw.WriteAuth(doc, stores)(handlers.UpdateHandler())
	r.GET("/v1/update", update)
	r.POST("/v1/update", update)

	r.GET("/v1/metrics", handlers.MetricsHandler())

	handler := handlers.RequestLogger(r.Handler)

	log.Printf("mesoserve listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
