// Package appids loads Steam appid lists from CLI arguments and files.
package appids

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ParseArgs converts command-line arguments into appids. Unlike file
// parsing, a non-numeric argument is an error: the caller typed it.
func ParseArgs(args []string) ([]int, error) {
	out := make([]int, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid appid %q", arg)
		}
		out = append(out, id)
	}
	return out, nil
}

// LoadFile reads appids from a text file. Tokens may be separated by
// commas, spaces, or newlines in any mix; non-numeric tokens are logged
// and skipped so a stray header line does not kill the run.
func LoadFile(path string, logger *zap.Logger) ([]int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open appids file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ReplaceAll(scanner.Text(), ",", " ")
		for _, token := range strings.Fields(line) {
			id, err := strconv.Atoi(token)
			if err != nil || id <= 0 {
				logger.Warn("ignoring non-numeric token in appids file",
					zap.String("token", token),
					zap.String("path", path),
				)
				continue
			}
			out = append(out, id)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read appids file: %w", err)
	}
	return out, nil
}
