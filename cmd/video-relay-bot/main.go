package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	video_relay "github.com/alanbriolat/video-relay"
	"github.com/alanbriolat/video-relay/fetcher/direct"
	"github.com/alanbriolat/video-relay/fetcher/youtube"
	"github.com/alanbriolat/video-relay/fetcher/ytdlp"
	"github.com/alanbriolat/video-relay/internal/config"
	"github.com/alanbriolat/video-relay/internal/httpapi"
	"github.com/alanbriolat/video-relay/internal/outbox"
	"github.com/alanbriolat/video-relay/internal/pipeline"
	"github.com/alanbriolat/video-relay/telegram"
	"github.com/alanbriolat/video-relay/uploader/s3"
	"github.com/alanbriolat/video-relay/uploader/streamtape"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	zap.RedirectStdLog(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "video-relay-bot",
		Usage: "relay chat-submitted videos to a hosting service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"VIDEO_RELAY_CONFIG"},
			},
			&cli.DurationFlag{
				Name:  "drain-timeout",
				Usage: "how long to let queued jobs finish after a shutdown signal",
				Value: 10 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			return run(ctx, c)
		},
		HideHelpCommand: true,
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err.Error())
	}
}

func run(ctx context.Context, c *cli.Context) error {
	log := zap.S().Named("main")

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if cfg.Telegram.Token == "" && cfg.Server.Addr == "" {
		return fmt.Errorf("nothing to serve: configure a telegram token or an api server address")
	}

	uploader, err := buildUploader(ctx, cfg)
	if err != nil {
		return err
	}

	box := outbox.New(cfg.Pipeline.OutboxSize)

	// The controller deliberately doesn't inherit the signal context: a shutdown signal
	// stops intake, then the pipeline drains on its own clock before Close.
	pipelineCtx := video_relay.WithLogger(context.Background(), zap.L().Named("fetch"))
	controller, err := pipeline.New(pipeline.Config{
		Pipeline: cfg.PipelineConfig(),
		Registry: buildRegistry(cfg, log),
		Uploader: uploader,
		Sink:     box,
	}, pipelineCtx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	if cfg.Telegram.Token != "" {
		frontend, err := telegram.New(telegram.Config{
			Token: cfg.Telegram.Token,
			Debug: cfg.Telegram.Debug,
		}, controller, box.Receive())
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			frontend.Run(ctx)
		}()
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logNotifications(box.Receive(), log)
		}()
	}

	var server *http.Server
	if cfg.Server.Addr != "" {
		server = &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      httpapi.NewServer(controller).Router(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Infof("api listening on %s", cfg.Server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorf("api server: %v", err)
			}
		}()
	}

	log.Infof("video relay running, caching to %s", cfg.Pipeline.CacheDir)
	<-ctx.Done()
	log.Infof("shutting down: draining the queue")

	// Stop intake first so the queue can only shrink, then wait for it to drain.
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}
	drainCtx, cancel := context.WithTimeout(context.Background(), c.Duration("drain-timeout"))
	defer cancel()
	if err := controller.Shutdown(drainCtx); err != nil {
		log.Warnf("queue did not drain in time, abandoning in-flight work: %v", err)
	}
	controller.Close()
	box.Close()
	wg.Wait()
	log.Infof("shutdown complete")
	return nil
}

// logNotifications consumes status notifications when no chat frontend is configured, so
// the outbox never fills up and drops them silently.
func logNotifications(notifications <-chan video_relay.Notification, log *zap.SugaredLogger) {
	for n := range notifications {
		log.Infow("notification", "recipient", n.Recipient, "text", n.Text)
	}
}

func buildRegistry(cfg *config.Config, log *zap.SugaredLogger) *video_relay.FetcherRegistry {
	registry := &video_relay.FetcherRegistry{}

	ytdlpConfig := ytdlp.NewConfig()
	ytdlpConfig.Path = cfg.Fetch.YTDLPPath
	ytdlpConfig.MaxHeight = cfg.Fetch.MaxHeight
	ytdlpConfig.Retries = cfg.Fetch.Retries
	if fetcher, err := ytdlp.New(ytdlpConfig); err != nil {
		log.Warnf("yt-dlp fetcher disabled: %v", err)
	} else {
		registry.MustAdd(fetcher.WithPriority(video_relay.PriorityHighest))
	}

	youtubeConfig := youtube.NewConfig()
	youtubeConfig.MaxHeight = cfg.Fetch.MaxHeight
	registry.MustAdd(youtubeConfig.Fetcher())

	registry.MustAdd(direct.NewConfig().Fetcher().WithPriority(video_relay.PriorityLowest))
	return registry
}

func buildUploader(ctx context.Context, cfg *config.Config) (video_relay.Uploader, error) {
	switch cfg.Uploader.Service {
	case "streamtape":
		return streamtape.New(streamtape.Config{
			Login:   cfg.Uploader.Streamtape.Login,
			Key:     cfg.Uploader.Streamtape.Key,
			BaseURL: cfg.Uploader.Streamtape.BaseURL,
		})
	case "s3":
		uploader, err := s3.New(s3.Config{
			Endpoint:   cfg.Uploader.S3.Endpoint,
			AccessKey:  cfg.Uploader.S3.AccessKey,
			SecretKey:  cfg.Uploader.S3.SecretKey,
			Bucket:     cfg.Uploader.S3.Bucket,
			UseSSL:     cfg.Uploader.S3.UseSSL,
			LinkExpiry: cfg.Uploader.S3.LinkExpiry,
		})
		if err != nil {
			return nil, err
		}
		if err := uploader.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return uploader, nil
	default:
		return nil, fmt.Errorf("unknown uploader service %q", cfg.Uploader.Service)
	}
}
