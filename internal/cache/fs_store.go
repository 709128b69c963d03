package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/pattmehta/AsyncImage/internal/logging"
	"github.com/pattmehta/AsyncImage/internal/resource"
)

const (
	// DefaultDirName 是缓存根目录下存放图片的子目录名。
	DefaultDirName = "ImageCache"
	tempPrefix     = ".cache-"
)

// Options 控制 Store 的可选行为。
type Options struct {
	DirName string
	Logger  *logrus.Logger
	Verbose *logging.Verbose
}

// Store 独占缓存目录，是唯一读写其中文件的组件。
type Store struct {
	fs      afero.Fs
	dir     string
	logger  *logrus.Logger
	verbose *logging.Verbose

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore 以 root/DirName 为缓存目录构建 Store；目录在首次写入时才创建。
func NewStore(fsys afero.Fs, root string, opts Options) (*Store, error) {
	if fsys == nil {
		return nil, errors.New("filesystem required")
	}
	if root == "" {
		return nil, errors.New("cache root required")
	}
	dirName := opts.DirName
	if dirName == "" {
		dirName = DefaultDirName
	}
	if strings.ContainsAny(dirName, `/\`) || dirName == "." || dirName == ".." {
		return nil, fmt.Errorf("invalid cache dir name: %s", dirName)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Store{
		fs:      fsys,
		dir:     filepath.Join(abs, dirName),
		logger:  logger,
		verbose: opts.Verbose,
		locks:   make(map[string]*entryLock),
	}, nil
}

// Dir 返回缓存目录的绝对路径。
func (s *Store) Dir() string {
	return s.dir
}

// Read 读取 key 对应的缓存正文；未命中返回 ErrNotFound。
func (s *Store) Read(ctx context.Context, key resource.Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filename := Filename(key)
	filePath := filepath.Join(s.dir, filename)

	info, err := s.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	data, err := afero.ReadFile(s.fs, filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if s.verbose.Enabled() {
		s.logger.WithFields(logging.LoadFields("cache_read", key.String(), true)).
			WithField("filename", filename).
			Info("cache_read")
	}
	return data, nil
}

// Write 通过临时文件 + rename 写入整份正文，随后确认目标文件存在。
// 同一 key 的并发写入串行执行，最后写入者生效。
func (s *Store) Write(ctx context.Context, key resource.Key, data []byte) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filename := Filename(key)
	unlock := s.lockEntry(filename)
	defer unlock()

	if err := s.ensureDir(); err != nil {
		return nil, err
	}

	filePath := filepath.Join(s.dir, filename)
	tempFile, err := afero.TempFile(s.fs, s.dir, tempPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tempName := tempFile.Name()

	written, err := writeAll(ctx, tempFile, data)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tempName)
		return nil, err
	}

	if err := s.fs.Rename(tempName, filePath); err != nil {
		_ = s.fs.Remove(tempName)
		return nil, fmt.Errorf("rename cache entry: %w", err)
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrEntryMissing
		}
		return nil, err
	}

	if s.verbose.Enabled() {
		s.logger.WithFields(logging.LoadFields("cache_write", key.String(), false)).
			WithFields(logrus.Fields{"filename": filename, "size_bytes": written}).
			Info("cache_write")
	}

	modTime := info.ModTime()
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	return &Entry{
		Key:       key.String(),
		Filename:  filename,
		FilePath:  filePath,
		SizeBytes: written,
		ModTime:   modTime,
	}, nil
}

// List 返回缓存目录中的文件名（按名称排序，忽略写入中的临时文件），仅用于诊断。
func (s *Store) List() ([]string, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || strings.HasPrefix(info.Name(), tempPrefix) {
			continue
		}
		names = append(names, info.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ensureDir 在每次写入前幂等地创建缓存目录，目录被外部删除后也能恢复。
func (s *Store) ensureDir() error {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return nil
}

func (s *Store) lockEntry(name string) func() {
	s.mu.Lock()
	lock := s.locks[name]
	if lock == nil {
		lock = &entryLock{}
		s.locks[name] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, name)
		}
		s.mu.Unlock()
	}
}

// writeAll 分块写入，在块之间响应 ctx 取消。
func writeAll(ctx context.Context, dst afero.File, data []byte) (int64, error) {
	const chunk = 32 * 1024
	var written int64
	for len(data) > 0 {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n := len(data)
		if n > chunk {
			n = chunk
		}
		w, err := dst.Write(data[:n])
		written += int64(w)
		if err != nil {
			return written, err
		}
		if w < n {
			return written, io.ErrShortWrite
		}
		data = data[n:]
	}
	return written, nil
}
