package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/embeddings"

	"github/itish2003/pdfchat/config"
	"github/itish2003/pdfchat/controller"
	"github/itish2003/pdfchat/services"
	"github/itish2003/pdfchat/vectorstore"
)

const version = "1.0.0"

//go:embed templates/*.html
var templatesFS embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("FATAL: Invalid configuration: %v", err)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		logrus.WithField("component", "main").Fatalf("FATAL: %v", err)
	}
}

// run wires the application and serves until ctx is cancelled. Every
// failure after the store is opened returns through here so the store is
// closed before the process exits.
func run(ctx context.Context, cfg *config.Config) error {
	log := logrus.WithField("component", "main")

	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("could not resolve DATA_DIR: %w", err)
	}
	files, err := services.NewDocumentFiles(dataDir)
	if err != nil {
		return err
	}

	embedder, err := services.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, embedder)
	if err != nil {
		return fmt.Errorf("failed to open vector store: %w", err)
	}
	// Ensure we close the store to flush and release the index.
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("Failed to close vector store: %v", err)
		}
	}()

	model, err := services.NewChatModel(ctx, cfg)
	if err != nil {
		return err
	}

	loader := services.NewPDFLoader(cfg.UnidocLicenseKey)
	log.Infof("PDF extractor: %s", loader.Backend())
	indexer := services.NewIndexingService(store, loader, services.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap))
	if _, err := indexer.Bootstrap(ctx, dataDir); err != nil {
		return fmt.Errorf("failed to build the index: %w", err)
	}
	if cfg.WatchDataDir {
		go func() {
			if err := indexer.WatchDirectory(ctx, dataDir); err != nil {
				log.Errorf("Directory watcher stopped: %v", err)
			}
		}()
	}

	ragService := services.NewRAGService(store, model, cfg.TopK)
	chatController := controller.NewChatController(ragService, indexer, files)

	srv := &http.Server{Addr: cfg.Addr(), Handler: setupRouter(chatController)}
	log.Infof("Server starting on http://%s", cfg.Addr())
	log.Infof("  GET  /          chat page")
	log.Infof("  POST /get       form field 'msg'")
	log.Infof("  POST /api/v1/query")
	log.Infof("  GET|POST /api/v1/documents")
	return serve(ctx, srv, 10*time.Second)
}

// serve runs srv until ctx is cancelled, then shuts it down within timeout.
// A listen failure is returned instead of exiting.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logrus.WithField("component", "main").Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func setupLogging(level string) {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Unknown LOG_LEVEL %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
}

func openStore(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (vectorstore.Store, error) {
	log := logrus.WithField("component", "main")
	switch cfg.VectorStore {
	case config.StoreChroma:
		return vectorstore.OpenChroma(ctx, cfg.ChromaURL, cfg.ChromaCollection, embedder)
	default:
		if vectorstore.IndexExists(cfg.IndexPath) {
			log.Infof("Opening existing index at %s", cfg.IndexPath)
		}
		return vectorstore.OpenSQLite(cfg.IndexPath, embedder)
	}
}

func setupRouter(chat *controller.ChatController) *gin.Engine {
	router := gin.Default()
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "pdfchat",
			"version": version,
		})
	})

	router.GET("/", chat.Index)
	router.POST("/get", chat.Chat)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/query", chat.QueryRAG)
		apiV1.GET("/documents", chat.GetDocuments)
		apiV1.POST("/documents", chat.UploadDocument)
		apiV1.DELETE("/documents/:name", chat.DeleteDocument)
	}
	return router
}
