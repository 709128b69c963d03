package routes

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/pattmehta/AsyncImage/internal/metrics"
	"github.com/pattmehta/AsyncImage/internal/version"
)

// CacheLister 暴露缓存目录的诊断视图。
type CacheLister interface {
	List() ([]string, error)
	Dir() string
}

// DebugSwitch 切换 verbose 开关，开启时返回缓存目录列表。
type DebugSwitch interface {
	SetDebug(enabled bool) ([]string, error)
	Debug() bool
}

// DiagnosticsOptions 汇总 /-/ 诊断接口依赖，Metrics 可为空。
type DiagnosticsOptions struct {
	Cache   CacheLister
	Debug   DebugSwitch
	Metrics *metrics.Registry
}

// RegisterDiagnosticsRoutes 暴露 /-/cache、/-/debug、/-/metrics 与 /-/version。
func RegisterDiagnosticsRoutes(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil {
		return
	}

	if opts.Cache != nil {
		app.Get("/-/cache", func(c fiber.Ctx) error {
			files, err := opts.Cache.List()
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_list_failed"})
			}
			return c.JSON(cachePayload{Dir: opts.Cache.Dir(), Files: files, Count: len(files)})
		})
	}

	if opts.Debug != nil {
		app.Get("/-/debug", func(c fiber.Ctx) error {
			return c.JSON(fiber.Map{"enabled": opts.Debug.Debug()})
		})

		app.Put("/-/debug", func(c fiber.Ctx) error {
			enabled, err := strconv.ParseBool(strings.TrimSpace(c.Query("enabled")))
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "enabled_flag_required"})
			}
			files, err := opts.Debug.SetDebug(enabled)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cache_list_failed"})
			}
			return c.JSON(debugPayload{Enabled: enabled, Files: files})
		})
	}

	if opts.Metrics != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(opts.Metrics.Handler()))
	}

	app.Get("/-/version", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"version": version.Full()})
	})
}

type cachePayload struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
	Count int      `json:"count"`
}

type debugPayload struct {
	Enabled bool     `json:"enabled"`
	Files   []string `json:"files,omitempty"`
}
