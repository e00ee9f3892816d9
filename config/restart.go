package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// BumpRestartCount 读取重启计数文件并加一后写回，返回新的计数。
// 文件不存在视为 0；内容无法解析时同样从 0 开始。
func BumpRestartCount(path string) (int, error) {
	n := 0
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if v, perr := strconv.Atoi(strings.TrimSpace(string(raw))); perr == nil {
			n = v
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return 0, fmt.Errorf("read restart count: %w", err)
	}
	n++
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create restart count dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(n)), 0o644); err != nil {
		return 0, fmt.Errorf("write restart count: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("replace restart count: %w", err)
	}
	return n, nil
}
