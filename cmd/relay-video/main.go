package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	video_relay "github.com/alanbriolat/video-relay"
	"github.com/alanbriolat/video-relay/async"
	"github.com/alanbriolat/video-relay/fetcher/direct"
	"github.com/alanbriolat/video-relay/fetcher/youtube"
	"github.com/alanbriolat/video-relay/fetcher/ytdlp"
	"github.com/alanbriolat/video-relay/generic"
	"github.com/alanbriolat/video-relay/internal/config"
	"github.com/alanbriolat/video-relay/internal/pipeline"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = video_relay.WithLogger(ctx, logger.Named("fetch"))

	app := &cli.App{
		Name:  "relay-video",
		Usage: "fetch videos and relay them to a hosting service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
				EnvVars: []string{"VIDEO_RELAY_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "cache-dir",
				Usage: "override the artifact cache `DIR`",
			},
			&cli.StringFlag{
				Name:  "urls-file",
				Usage: "read additional video URLs from `FILE`, one per line",
			},
			&cli.BoolFlag{
				Name:  "keep",
				Usage: "keep fetched files in the cache dir instead of deleting after upload",
			},
		},
		Action: func(c *cli.Context) error {
			return relay(ctx, c)
		},
		HideHelpCommand: true,
	}

	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
		if err != nil {
			logger.Fatal(err.Error())
		}
	case <-ctx.Done():
		logger.Error(ctx.Err().Error())
		stop()
	}
}

func relay(ctx context.Context, c *cli.Context) error {
	log := zap.S().Named("relay")

	references := c.Args().Slice()
	if path := c.String("urls-file"); path != "" {
		fromFile, err := readURLs(path)
		if err != nil {
			return err
		}
		references = append(references, fromFile...)
	}
	if len(references) == 0 {
		return fmt.Errorf("nothing to do: no video URLs given")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if dir := c.String("cache-dir"); dir != "" {
		cfg.Pipeline.CacheDir = dir
	}

	uploader, err := buildUploader(ctx, cfg)
	if err != nil {
		return err
	}

	controller, err := pipeline.New(pipeline.Config{
		Pipeline:      cfg.PipelineConfig(),
		Registry:      buildRegistry(cfg, log),
		Uploader:      uploader,
		KeepArtifacts: c.Bool("keep"),
		Progress:      progressBar,
	}, ctx)
	if err != nil {
		return err
	}
	defer controller.Close()

	var jobs []*video_relay.Job
	failures := 0
	for _, reference := range references {
		job, err := controller.Submit(reference, "")
		if err != nil {
			log.Errorf("rejected %s: %v", reference, err)
			failures++
			continue
		}
		jobs = append(jobs, job)
	}

	select {
	case <-controller.WaitIdle():
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, job := range jobs {
		switch job.State() {
		case video_relay.JobStateDone:
			fmt.Printf("%s -> %s\n", job.Reference, job.PublicURL)
		default:
			failures++
			fmt.Printf("%s -> FAILED: %s\n", job.Reference, job.FailureReason)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d videos failed", failures, len(references))
	}
	log.Infof("all %d videos relayed", len(references))
	return nil
}

// progressBar renders one terminal progress bar per job.
func progressBar(job *video_relay.Job) func(downloaded int64, expected int64) {
	bar := progressbar.DefaultBytes(1, "fetching")
	return func(downloaded int64, expected int64) {
		if expected > 0 && bar.GetMax64() != expected {
			bar.ChangeMax64(expected)
		}
		generic.Unwrap_(bar.Set64(downloaded))
	}
}

func readURLs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
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
