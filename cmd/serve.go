package cmd

import (
	"context"
	stdlog "log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jd-evaluator/internal/logger"
	"github.com/spigell/jd-evaluator/internal/server"
	"github.com/spigell/jd-evaluator/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve evaluation sessions over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default is :8080)")
	viper.BindPFlag("serve.listen", serveCmd.Flags().Lookup("listen"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		stdlog.Fatalf("creating a logger: %s", err)
	}

	config, service := startup(ctx, log)

	app, err := server.New(server.Config{
		Service:        service,
		Registry:       session.NewRegistry(),
		AutoCompare:    config.AutoCompare,
		MaxUploadBytes: config.Serve.MaxUploadBytes,
		Logger:         log,
	})
	if err != nil {
		log.Fatal("creating the http server", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down the http server")
		if err := app.Shutdown(); err != nil {
			log.Error("shutting down the http server", zap.Error(err))
		}
	}()

	log.Info("listening", zap.String("address", config.Serve.Listen))
	if err := app.Listen(config.Serve.Listen); err != nil {
		log.Fatal("serving http", zap.Error(err))
	}
}
