package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/docbridge/docbridge/config"
	"github.com/docbridge/docbridge/internal/api"
	"github.com/docbridge/docbridge/internal/backend/elastic"
	"github.com/docbridge/docbridge/internal/mirror"
	"github.com/docbridge/docbridge/internal/store"
	memorystore "github.com/docbridge/docbridge/internal/store/memory"
	mongostore "github.com/docbridge/docbridge/internal/store/mongo"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the docbridge server",
	Long: `Start the HTTP server and the mirroring engine. Models declared in the
configuration are registered against the search backend, and every save or
remove on the document store is reflected in the index.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().String("host", "0.0.0.0", "Host to bind the server to")
	serverCmd.Flags().Int("port", 8080, "Port to bind the server to")

	// Bind flags to viper
	viper.BindPFlag("server.host", serverCmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", serverCmd.Flags().Lookup("port"))
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize document store
	st, cleanup, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize document store: %w", err)
	}
	defer cleanup()

	// Initialize search backend
	be, err := elastic.New(elastic.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize search backend: %w", err)
	}

	// Initialize mirror
	m := mirror.New(st, mirror.Config{
		Bulk: mirror.BulkConfig{
			Size:       cfg.Bulk.Size,
			Timeout:    time.Duration(cfg.Bulk.TimeoutMS) * time.Millisecond,
			BufferSize: cfg.Bulk.BufferSize,
		},
	})

	// Population models first so indexed models resolve their references.
	for _, mc := range cfg.Models {
		if mc.Population {
			if err := m.RegisterPopulation(mc.Name); err != nil {
				return fmt.Errorf("failed to register population model %s: %w", mc.Name, err)
			}
		}
	}
	for _, mc := range cfg.Models {
		if mc.Indexed {
			opts := &mirror.ModelOptions{UseBulk: mc.UseBulk, Index: mc.Index}
			if err := m.RegisterModel(mc.Name, opts); err != nil {
				return fmt.Errorf("failed to register model %s: %w", mc.Name, err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Connect(ctx, be, cfg.Index.Name, cfg.Index.Settings); err != nil {
		return fmt.Errorf("failed to connect to search backend: %w", err)
	}

	// Initialize API server
	apiServer := api.NewServer(m, cfg)

	// Setup HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Drain the bulk queue before going away.
	m.Flush(ctx)
	cancel()

	// Shutdown server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		return err
	}

	log.Println("Server exited")
	return nil
}

// buildStore constructs the configured document store implementation.
func buildStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "memory":
		st := memorystore.New()
		for name, tree := range cfg.SchemaTrees() {
			st.DefineSchema(name, tree)
		}
		for model, schemaName := range cfg.ModelSchemas() {
			if err := st.DefineModel(model, schemaName); err != nil {
				return nil, nil, err
			}
		}
		return st, func() {}, nil
	case "", "mongodb":
		st, err := mongostore.New(mongostore.Config{
			URI:      cfg.MongoDB.GetMongoURI(),
			Database: cfg.MongoDB.Database,
			Timeout:  time.Duration(cfg.MongoDB.Timeout) * time.Second,
		}, cfg.SchemaTrees(), cfg.ModelSchemas())
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := st.Disconnect(); err != nil {
				log.Printf("Failed to disconnect from MongoDB: %v", err)
			}
		}
		return st, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
