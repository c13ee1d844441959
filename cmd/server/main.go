/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the water balance engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load the optional JSON config file
  3. Initialize SQLite store
  4. Optionally build topology + mappings from the diagram file
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: waterbalance.db)
            Use ":memory:" for an in-memory database
  -config   Optional JSON config file path
  -diagram  Optional flow diagram JSON to load at startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database and a diagram
  ./server -db="./data/waterbalance.db" -diagram="./site/diagram.json"

  # Run with in-memory database for demos
  ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hydrova/waterbalance-engine/api"
	"github.com/hydrova/waterbalance-engine/factory"
	"github.com/hydrova/waterbalance-engine/pumps"
	"github.com/hydrova/waterbalance-engine/runway"
	"github.com/hydrova/waterbalance-engine/source"
	"github.com/hydrova/waterbalance-engine/store/sqlite"
)

// Config is the optional JSON configuration file. Every field has a
// working default; a missing file is not an error.
type Config struct {
	Constants struct {
		// RunwayGrossFloorPct is the fraction of gross outflow assumed
		// irretrievably consumed (runway "floor" method).
		RunwayGrossFloorPct float64 `json:"runway_gross_floor_pct"`

		// PumpTransferPct is the per-evaluation transfer increment as a
		// fraction of current volume.
		PumpTransferPct float64 `json:"pump_transfer_pct"`
	} `json:"constants"`

	DataSources struct {
		DiagramPath string `json:"diagram_path"`
	} `json:"data_sources"`
}

func loadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "waterbalance.db", "SQLite database path")
	configPath := flag.String("config", "", "JSON config file path")
	diagramPath := flag.String("diagram", "", "flow diagram JSON to load at startup")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store)
	if cfg.Constants.RunwayGrossFloorPct > 0 {
		handler.Runway = &runway.Service{GrossFloorPct: decimal.NewFromFloat(cfg.Constants.RunwayGrossFloorPct)}
	}
	if cfg.Constants.PumpTransferPct > 0 {
		handler.Pumps = &pumps.Engine{TransferPct: decimal.NewFromFloat(cfg.Constants.PumpTransferPct)}
	}

	// Load the flow diagram, if one was given.
	diagram := *diagramPath
	if diagram == "" {
		diagram = cfg.DataSources.DiagramPath
	}
	if diagram != "" {
		d, err := factory.LoadDiagram(diagram)
		if err != nil {
			log.Fatalf("Failed to load diagram: %v", err)
		}
		built, err := factory.Build(d)
		if err != nil {
			log.Fatalf("Failed to build topology: %v", err)
		}
		for _, issue := range built.Issues {
			log.Printf("topology %s", issue)
		}
		handler.Graph = built.Graph
		// The adapter carries the diagram's excel bindings from startup;
		// the series itself is swapped in when a workbook is opened.
		handler.Adapter = source.NewAdapter(source.NewMemorySeries(), built.Mappings, nil, nil)
	}

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
