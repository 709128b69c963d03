package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pattmehta/AsyncImage/internal/loader"
	"github.com/pattmehta/AsyncImage/internal/logging"
	"github.com/pattmehta/AsyncImage/internal/resource"
)

// ImageLoader describes the component that turns a key into a load Task. It
// allows injecting fake loaders during tests.
type ImageLoader interface {
	Load(ctx context.Context, key resource.Key, sink loader.Sink) *loader.Task
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Loader     ImageLoader
	ListenPort int
}

const (
	contextKeyRequestID = "_asyncimage_request_id"

	// HeaderOutcome 在响应中标明加载终态：cache_hit/network/fallback。
	HeaderOutcome = "X-AsyncImage-Outcome"
)

// NewApp builds a Fiber application with request IDs, panic recovery and the
// image route.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Loader == nil {
		return nil, errors.New("image loader is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.Get("/image", imageHandler(opts))

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并写入响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// imageHandler 把一次加载桥接到 HTTP 响应：结果经由 channel sink 送回，
// 占位图同样以 200 返回，由 X-AsyncImage-Outcome 区分。
func imageHandler(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		requestID := RequestID(c)

		key, err := resource.Parse(c.Query("url"))
		if err != nil {
			opts.Logger.WithFields(logrus.Fields{
				"action":     "image",
				"request_id": requestID,
				"url":        c.Query("url"),
			}).WithError(err).Warn("invalid_url")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_url"})
		}

		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		published := make(chan loader.Result, 1)
		task := opts.Loader.Load(ctx, key, loader.SinkFunc(func(r loader.Result) {
			published <- r
		}))
		<-task.Done()

		var result loader.Result
		select {
		case result = <-published:
		default:
			_, waitErr := task.Wait()
			logImage(opts.Logger, requestID, key, "", started, waitErr)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "load_cancelled"})
		}

		c.Set(fiber.HeaderContentType, http.DetectContentType(result.Data))
		c.Set(HeaderOutcome, string(result.Outcome))
		logImage(opts.Logger, requestID, key, result.Outcome, started, result.Err)
		return c.Status(fiber.StatusOK).Send(result.Data)
	}
}

func logImage(logger *logrus.Logger, requestID string, key resource.Key, outcome loader.Outcome, started time.Time, err error) {
	fields := logging.LoadFields("image", key.String(), outcome == loader.OutcomeCacheHit)
	fields["request_id"] = requestID
	fields["outcome"] = string(outcome)
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if err != nil && outcome == "" {
		fields["error"] = err.Error()
		logger.WithFields(fields).Error("image_failed")
		return
	}
	logger.WithFields(fields).Info("image_served")
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
