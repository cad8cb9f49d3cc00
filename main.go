package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/matte/estimator"
	"github.com/chaos-io/cutout/pipeline"
	"github.com/chaos-io/cutout/server"
	"github.com/chaos-io/cutout/util"
	nhttp "github.com/chaos-io/cutout/util/http"
	"github.com/gin-gonic/gin"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径，为空时读取 ./config.yaml 或使用默认配置")
	inputPath := flag.String("input", "", "输入图片，本地路径或 http(s) 地址")
	outputPath := flag.String("output", "", "输出 PNG 路径，默认写到 export.dir")
	serve := flag.Bool("serve", false, "启动 HTTP 服务")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// 初始化日志
	if err := util.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	proc, handle, err := newProcessor(cfg)
	if err != nil {
		util.Logger.Fatal("failed to build processor", zap.Error(err))
	}
	defer func() { _ = handle.Close() }()

	exp, err := cfg.ExportOptions()
	if err != nil {
		util.Logger.Fatal("invalid export config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *serve:
		err = runServer(ctx, cfg, proc, exp)
	case *inputPath != "":
		err = runOnce(ctx, proc, exp, *inputPath, outputFor(cfg, *outputPath))
	default:
		flag.Usage()
		return
	}
	if err != nil {
		util.Logger.Error("exit with error", zap.Error(err))
		util.Sync()
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

// newProcessor 按配置创建模型句柄，模型在第一次使用时才加载
func newProcessor(cfg *config.Config) (*pipeline.Processor, *estimator.Handle, error) {
	profile, err := cfg.Matte.Profile()
	if err != nil {
		return nil, nil, err
	}
	opts, err := cfg.Matte.PipelineOptions()
	if err != nil {
		return nil, nil, err
	}

	ec := cfg.Matte.Estimator
	var load estimator.Loader
	switch ec.Kind {
	case "onnx":
		load = func() (estimator.Estimator, error) {
			return estimator.NewONNX(estimator.ONNXConfig{
				ModelPath:   ec.ModelPath,
				LibraryPath: ec.LibraryPath,
				NumThreads:  ec.NumThreads,
			})
		}
	case "remote":
		load = func() (estimator.Estimator, error) {
			return estimator.NewRemote(estimator.RemoteConfig{
				URL:        ec.URL,
				InputSize:  ec.InputSize,
				OutputRank: ec.OutputRank,
				Timeout:    ec.Timeout,
			}, nhttp.NewHTTPClient()), nil
		}
	case "", "none":
	default:
		return nil, nil, fmt.Errorf("unknown estimator kind %q", ec.Kind)
	}

	handle := estimator.NewHandle(profile.Name, load)
	return pipeline.NewProcessor(handle, profile, opts), handle, nil
}

func outputFor(cfg *config.Config, output string) string {
	if output != "" {
		return output
	}
	return filepath.Join(cfg.Export.Dir, ksuid.New().String()+".png")
}

func runOnce(ctx context.Context, proc *pipeline.Processor, exp pipeline.ExportOptions, input, output string) error {
	var (
		img image.Image
		err error
	)
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		img, err = util.DownloadImage(input)
	} else {
		img, err = util.OpenImage(input)
	}
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}

	out, outcome, err := proc.Process(ctx, img, exp)
	if err != nil {
		return err
	}
	if err := util.SavePNG(out, output); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("output", output),
		zap.String("method", string(outcome.Method)),
		zap.Bool("fallback", outcome.Fallback),
	}
	if outcome.Reason != nil {
		fields = append(fields, zap.NamedError("reason", outcome.Reason))
	}
	util.Logger.Info("done", fields...)
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, proc *pipeline.Processor, exp pipeline.ExportOptions) error {
	if err := os.MkdirAll(cfg.Export.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	var cache server.Cache = server.NopCache{}
	if cfg.Redis.Enabled {
		rc := server.NewRedisCache(&cfg.Redis)
		defer func() { _ = rc.Close() }()
		if err := rc.Ping(ctx); err != nil {
			util.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			util.Logger.Info("redis connected successfully")
			cache = rc
		}
	}

	if cfg.Cleanup.Enabled {
		sweeper := server.NewSweeper(cfg.Export.Dir, cfg.Export.Retention)
		if err := sweeper.Start(cfg.Cleanup.Schedule); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			sweeper.Stop(stopCtx)
		}()
	}

	svc := server.NewCutoutService(proc, exp, cfg.Export.Dir, cfg.Server.MaxConcurrent, cfg.Server.QueueTimeout)
	handler := server.NewCutoutHandler(svc, cache, cfg.Server.MaxUploadSize)

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      server.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		util.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	util.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
