package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/certifyhq/certgen/internal/server"
	"github.com/certifyhq/certgen/pkg/history"
	"github.com/certifyhq/certgen/pkg/jobstore"
)

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr        string
		artifactDir string
		redisAddr   string
		mongoURI    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP generation API",
		Long: `Serve exposes certificate generation over HTTP: template preview, font
listing, and asynchronous batch jobs with polling and archive download.

Job state lives in memory unless a Redis address is configured; run
history is written to local files unless a MongoDB URI is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srvCfg := c.Config.Server
			if addr != "" {
				srvCfg.Addr = addr
			}
			if artifactDir != "" {
				srvCfg.ArtifactDir = artifactDir
			}
			if redisAddr != "" {
				srvCfg.RedisAddr = redisAddr
			}
			if mongoURI != "" {
				srvCfg.MongoURI = mongoURI
			}
			return c.runServe(cmd.Context(), srvCfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&artifactDir, "artifact-dir", "", "directory for staged archives")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "redis address for shared job state")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "mongodb URI for run history")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, srvCfg ServerConfig) error {
	jobs, err := c.newJobStore(ctx, srvCfg)
	if err != nil {
		return err
	}
	defer jobs.Close()

	hist, err := c.newServerHistory(ctx, srvCfg)
	if err != nil {
		return err
	}
	if hist != nil {
		defer hist.Close(context.Background())
	}

	artifactDir := srvCfg.ArtifactDir
	if artifactDir == "" {
		artifactDir = filepath.Join(os.TempDir(), appName+"-artifacts")
	}

	srv := server.New(server.Config{
		Addr:        srvCfg.Addr,
		FontDir:     c.Config.FontDir,
		ArtifactDir: artifactDir,
		Workers:     c.Config.Workers,
		Quality:     c.Config.Quality,
		Jobs:        jobs,
		History:     hist,
		Logger:      c.Logger,
	})
	return srv.ListenAndServe(ctx)
}

func (c *CLI) newJobStore(ctx context.Context, srvCfg ServerConfig) (jobstore.Store, error) {
	if srvCfg.RedisAddr == "" {
		c.Logger.Debug("Using in-memory job store")
		return jobstore.NewMemoryStore(), nil
	}
	c.Logger.Info("Using redis job store", "addr", srvCfg.RedisAddr)
	return jobstore.NewRedisStore(ctx, jobstore.RedisConfig{
		Addr:     srvCfg.RedisAddr,
		Password: srvCfg.RedisPassword,
		DB:       srvCfg.RedisDB,
	})
}

func (c *CLI) newServerHistory(ctx context.Context, srvCfg ServerConfig) (history.Store, error) {
	if srvCfg.MongoURI == "" {
		return c.newHistory()
	}
	c.Logger.Info("Using mongodb run history", "database", srvCfg.MongoDatabase)
	return history.NewMongoStore(ctx, history.MongoConfig{
		URI:      srvCfg.MongoURI,
		Database: srvCfg.MongoDatabase,
	})
}
