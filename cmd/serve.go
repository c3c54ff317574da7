package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pwhiting/Translate/global/config"
	"github.com/pwhiting/Translate/logger"
	"github.com/pwhiting/Translate/module/api"
	"github.com/pwhiting/Translate/module/translate"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *options, nodeType, short string) *cobra.Command {
	return &cobra.Command{
		Use:   nodeType,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath, nodeType)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.AppConfig) error {
	gin.SetMode(gin.ReleaseMode)
	rt, err := config.Boot(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	var worker *translate.Worker
	if cfg.RunsWorker() {
		fanout := &translate.Fanout{
			Languages:      rt.Meetings,
			Seq:            rt.Seq,
			Log:            rt.Log,
			Translator:     rt.Translator,
			CallTimeout:    cfg.Fanout.CallTimeout,
			MaxConcurrency: cfg.Fanout.MaxConcurrency,
		}
		worker = translate.NewWorker(rt.Bus, translate.NewReorderBuffer(cfg.Buffer.Window), fanout, rt.Idem,
			translate.WorkerConfig{DrainInterval: cfg.Buffer.DrainInterval, IdemTTL: cfg.Idem.TTL})
		if err := worker.Start(ctx); err != nil {
			return err
		}
		defer worker.Stop()
	}

	var srv *http.Server
	if cfg.RunsAPI() {
		h := api.NewServer(rt.Meetings, rt.Seq, rt.Protocol, rt.Bus, rt.Recognizer, cfg.Speech.SampleRate, rt.Check)
		srv = &http.Server{Addr: cfg.HTTP.Addr, Handler: h.Router(), ReadHeaderTimeout: 10 * time.Second}
	} else {
		srv = &http.Server{Addr: cfg.HTTP.WorkerAddr, Handler: api.NewHealthRouter(rt.Check), ReadHeaderTimeout: 10 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("node", cfg.Node.Type))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err = g.Wait()
	logger.Info("shutting down", zap.String("node", cfg.Node.Type))
	return err
}
