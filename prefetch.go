package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pattmehta/AsyncImage/internal/loader"
	"github.com/pattmehta/AsyncImage/internal/resource"
)

// loadOnce 并发加载命令行给出的 URL，按输入顺序输出 outcome/size/url。
// 任一 URL 非法或最终落到占位图时返回 1。
func loadOnce(ctx context.Context, l *loader.Loader, urls []string, concurrency int) int {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]loader.Result, len(urls))
	failures := make([]error, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, raw := range urls {
		key, err := resource.Parse(raw)
		if err != nil {
			failures[i] = err
			continue
		}
		g.Go(func() error {
			result, err := l.Load(gctx, key, nil).Wait()
			if err != nil {
				// 仅在被取消时出现，停止剩余加载
				return err
			}
			results[i] = result
			return nil
		})
	}
	waitErr := g.Wait()

	code := 0
	for i, raw := range urls {
		if failures[i] != nil {
			fmt.Fprintf(stdErr, "invalid\t%s\t%v\n", raw, failures[i])
			code = 1
			continue
		}
		result := results[i]
		if result.Outcome == "" {
			fmt.Fprintf(stdErr, "cancelled\t%s\n", raw)
			code = 1
			continue
		}
		fmt.Fprintf(stdOut, "%s\t%d\t%s\n", result.Outcome, len(result.Data), result.Key.String())
		if result.Outcome == loader.OutcomeFallback {
			code = 1
		}
	}
	if waitErr != nil {
		fmt.Fprintf(stdErr, "加载被中断: %v\n", waitErr)
		return 1
	}
	return code
}
