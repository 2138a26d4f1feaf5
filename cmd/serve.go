package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spigell/talentcore/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve matching, recommendations, RAG answers and analytics over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default :8080)")
	viper.BindPFlag("server.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, logger := setup(ctx, "serve")
	defer application.Close()

	cfg := application.config.Server
	cfg.Version = version

	srv := server.New(cfg, server.Services{
		RAG:         application.rag,
		Matching:    application.engine,
		Recommender: application.recommender,
		Analytics:   application.analytics,
	}, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Error("http server stopped", zap.Error(err))
		return
	}

	stats := application.embeddings.Stats()
	logger.Info("exiting",
		zap.Int64("embedding_calls", stats.Calls),
		zap.Int64("embedding_cache_hits", stats.CacheHits),
		zap.Float64("embedding_cost_usd", stats.EstimatedCostUSD),
	)
}
