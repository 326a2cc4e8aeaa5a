// Package ncutil holds the NetCDF post-processing steps applied to task
// outputs.
package ncutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"ctpdaily/internal/config"

	"go.uber.org/zap"
)

// Compressor compresses a NetCDF file and returns the path of the result.
type Compressor interface {
	Compress(ctx context.Context, path string) (string, error)
}

// NCCopy compresses with `nccopy -d <level> -s` and replaces the original
// file, so the returned path is the input path.
type NCCopy struct {
	Binary            string
	Level             int
	AllowUncompressed bool
	// Env is the environment nccopy runs in. Nil means the current process
	// environment.
	Env    []string
	Logger *zap.Logger
}

func NewNCCopy(sw config.Software, logger *zap.Logger) *NCCopy {
	if logger == nil {
		logger = zap.NewNop()
	}
	bin := sw.NCCopy
	if bin == "" {
		bin = "nccopy"
	}
	return &NCCopy{
		Binary:            bin,
		Level:             sw.CompressionLevel,
		AllowUncompressed: sw.AllowUncompressed,
		Logger:            logger,
	}
}

func (c *NCCopy) Compress(ctx context.Context, path string) (string, error) {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if fi, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("compress: %w", err)
	} else if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("compress: %s is not a regular file", path)
	}

	bin, err := c.lookPath()
	if err != nil {
		if c.AllowUncompressed {
			logger.Warn("nccopy not available; keeping output uncompressed",
				zap.String("path", path), zap.Error(err))
			return path, nil
		}
		return "", fmt.Errorf("compress %s: %w", path, err)
	}

	level := c.Level
	if level < 1 || level > 9 {
		level = 4
	}

	tmp := strings.TrimSuffix(path, filepath.Ext(path)) + ".nccopy.tmp"
	defer os.Remove(tmp)

	cmd := exec.CommandContext(ctx, bin, "-d", strconv.Itoa(level), "-s", path, tmp)
	if c.Env != nil {
		cmd.Env = c.Env
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("compressing output", zap.String("cmd", cmd.String()))
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("nccopy %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	if _, err := os.Stat(tmp); err != nil {
		return "", fmt.Errorf("nccopy %s produced no output: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("replace %s with compressed copy: %w", path, err)
	}
	return path, nil
}

func (c *NCCopy) lookPath() (string, error) {
	if c.Binary == "" {
		return "", errors.New("no nccopy binary configured")
	}
	if strings.ContainsRune(c.Binary, os.PathSeparator) {
		fi, err := os.Stat(c.Binary)
		if err != nil {
			return "", err
		}
		if fi.IsDir() || fi.Mode().Perm()&0o111 == 0 {
			return "", fmt.Errorf("%s is not executable", c.Binary)
		}
		return c.Binary, nil
	}
	if c.Env != nil {
		for _, kv := range c.Env {
			if dirs, ok := strings.CutPrefix(kv, "PATH="); ok {
				for _, dir := range filepath.SplitList(dirs) {
					p := filepath.Join(dir, c.Binary)
					if fi, err := os.Stat(p); err == nil && !fi.IsDir() && fi.Mode().Perm()&0o111 != 0 {
						return p, nil
					}
				}
			}
		}
	}
	return exec.LookPath(c.Binary)
}
