package loader

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
)

const (
	placeholderWidth  = 120
	placeholderHeight = 90
)

var (
	placeholderOnce  sync.Once
	placeholderBytes []byte
)

// DefaultPlaceholder 返回 120x90 纯灰 PNG，只生成一次；返回值为副本。
func DefaultPlaceholder() []byte {
	placeholderOnce.Do(func() {
		img := image.NewGray(image.Rect(0, 0, placeholderWidth, placeholderHeight))
		gray := color.Gray{Y: 0x88}
		for y := 0; y < placeholderHeight; y++ {
			for x := 0; x < placeholderWidth; x++ {
				img.SetGray(x, y, gray)
			}
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			panic(fmt.Sprintf("encode placeholder: %v", err))
		}
		placeholderBytes = buf.Bytes()
	})
	return append([]byte(nil), placeholderBytes...)
}

// LoadPlaceholder 读取自定义占位图；path 为空时使用 DefaultPlaceholder。
func LoadPlaceholder(path string) ([]byte, error) {
	if path == "" {
		return DefaultPlaceholder(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read placeholder: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("placeholder %s is empty", path)
	}
	return data, nil
}
