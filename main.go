package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/pattmehta/AsyncImage/internal/cache"
	"github.com/pattmehta/AsyncImage/internal/config"
	"github.com/pattmehta/AsyncImage/internal/fetch"
	"github.com/pattmehta/AsyncImage/internal/loader"
	"github.com/pattmehta/AsyncImage/internal/logging"
	"github.com/pattmehta/AsyncImage/internal/metrics"
	"github.com/pattmehta/AsyncImage/internal/server"
	"github.com/pattmehta/AsyncImage/internal/server/routes"
	"github.com/pattmehta/AsyncImage/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath     string
	explicitConfig bool
	checkOnly      bool
	showVersion    bool
	debug          bool
	urls           []string
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

// appRuntime 持有一次进程生命周期内共享的组件实例。
type appRuntime struct {
	store   *cache.Store
	loader  *loader.Loader
	metrics *metrics.Registry
	verbose *logging.Verbose
}

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(*cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_dir"] = cfg.CacheDir()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 组件装配顺序：配置 → 磁盘缓存 → 上游 client → Loader，所有请求共享同一实例。
	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化组件失败: %v\n", err)
		return 1
	}
	if opts.debug || cfg.Debug {
		if _, err := rt.loader.SetDebug(true); err != nil {
			fmt.Fprintf(stdErr, "列出缓存目录失败: %v\n", err)
		}
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["cache_dir"] = cfg.CacheDir()
	fields["dedupe"] = cfg.DedupeInflight
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if len(opts.urls) > 0 {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return loadOnce(ctx, rt.loader, opts.urls, cfg.PrefetchConcurrency)
	}

	if err := startHTTPServer(cfg, rt, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig 读取配置；未显式指定且默认文件不存在时退回内置默认值。
func loadConfig(opts cliOptions) (*config.Config, error) {
	if !opts.explicitConfig {
		if _, err := os.Stat(opts.configPath); errors.Is(err, fs.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return config.Load(opts.configPath)
}

// buildRuntime 按配置构造缓存、Fetcher 与 Loader，三者共享同一个 verbose 开关。
func buildRuntime(cfg *config.Config, logger *logrus.Logger) (*appRuntime, error) {
	verbose := logging.NewVerbose(false)
	reg := metrics.NewRegistry()

	store, err := cache.NewStore(afero.NewOsFs(), cfg.CacheRoot, cache.Options{
		DirName: cfg.CacheDirName,
		Logger:  logger,
		Verbose: verbose,
	})
	if err != nil {
		return nil, err
	}

	placeholder, err := loader.LoadPlaceholder(cfg.PlaceholderPath)
	if err != nil {
		return nil, err
	}

	httpClient := server.NewUpstreamClient(cfg)
	fetcher := fetch.New(httpClient, logger, fetch.Options{
		ReadTimeout: cfg.ReadTimeout.DurationValue(),
		Verbose:     verbose,
	})

	l, err := loader.New(store, fetcher, logger, loader.Options{
		PacingDelay: cfg.PacingDelay.DurationValue(),
		Placeholder: placeholder,
		Dedupe:      cfg.DedupeInflight,
		Verbose:     verbose,
		Metrics:     reg,
	})
	if err != nil {
		return nil, err
	}

	return &appRuntime{
		store:   store,
		loader:  l,
		metrics: reg,
		verbose: verbose,
	}, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("asyncimage", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		debug      bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ASYNCIMAGE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.BoolVar(&debug, "debug", false, "启动时开启 verbose 日志并列出缓存目录")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ASYNCIMAGE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	explicit := path != ""
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:     path,
		explicitConfig: explicit,
		checkOnly:      checkOnly,
		showVersion:    showVer,
		debug:          debug,
		urls:           fs.Args(),
	}, nil
}

func startHTTPServer(cfg *config.Config, rt *appRuntime, logger *logrus.Logger) error {
	port := cfg.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Loader:     rt.loader,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, routes.DiagnosticsOptions{
		Cache:   rt.store,
		Debug:   rt.loader,
		Metrics: rt.metrics,
	})

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
