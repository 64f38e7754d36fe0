package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/geolytics/geolytics/internal/cluster"
	"github.com/geolytics/geolytics/internal/federation"
	"github.com/geolytics/geolytics/internal/progress"
	"github.com/geolytics/geolytics/internal/project"
	"github.com/geolytics/geolytics/internal/server"
	"github.com/geolytics/geolytics/internal/template"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		host    string
		dev     bool
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the geolytics API server",
		Long:  "Start the HTTP server: scan the configured hosts for databases, then serve the query, catalog, and upload endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev, dataDir)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8000, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory for saved templates (default: ~/.geolytics)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

// buildRegistry reads host definitions from a dedicated hosts file when
// clusters.hosts_file is set, else from clusters.hosts/clusters.primaries in
// the main config.
func buildRegistry(logger *slog.Logger) (*cluster.Registry, error) {
	if path := viper.GetString("clusters.hosts_file"); path != "" {
		hosts, primaries, err := cluster.LoadHostsFile(path)
		if err != nil {
			return nil, err
		}
		return cluster.NewRegistry(hosts, primaries, logger), nil
	}

	var hosts []cluster.HostConfig
	if err := viper.UnmarshalKey("clusters.hosts", &hosts); err != nil {
		return nil, fmt.Errorf("parse clusters.hosts: %w", err)
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("no cluster hosts configured (set clusters.hosts in geolytics.yaml)")
	}
	primaries := viper.GetStringSlice("clusters.primaries")
	return cluster.NewRegistry(hosts, primaries, logger), nil
}

func runServe(host string, port int, dev bool, dataDir string) error {
	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	registry, err := buildRegistry(logger)
	if err != nil {
		return err
	}
	defer registry.Close()

	// First scan happens before we accept traffic; readiness gates on it.
	scanCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	registry.Refresh(scanCtx)
	cancel()
	logger.Info("database discovery complete", "databases", registry.Len())

	// Re-scan daily so databases created after startup become queryable.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("@every 24h", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		registry.Refresh(ctx)
	}); err != nil {
		return fmt.Errorf("schedule registry refresh: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	configDSN := viper.GetString("config.dsn")
	if configDSN == "" {
		return fmt.Errorf("config.dsn is required (postgres DSN of the project configuration database)")
	}
	configDB, err := sqlx.Connect("pgx", configDSN)
	if err != nil {
		return fmt.Errorf("connect configuration database: %w", err)
	}
	defer configDB.Close()
	resolver := project.NewResolver(configDB)

	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = home + "/.geolytics"
	}
	templates, err := template.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("init template store: %w", err)
	}
	defer templates.Close()
	logger.Info("template store initialized", "path", dataDir)

	engine := federation.NewEngine(registry, resolver, progress.NewTracker(), logger)

	srvCfg := server.DefaultConfig()
	srvCfg.Host = host
	srvCfg.Port = port

	srv := server.New(srvCfg, registry, resolver, engine, templates, logger)

	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ Health:    http://%s:%d/healthz\n", host, port)
	fmt.Printf("→ Databases: %d discovered\n", registry.Len())

	return srv.ListenAndServe()
}
