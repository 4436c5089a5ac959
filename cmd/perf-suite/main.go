package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"yqhp/perf-suite/internal/cli"
	"yqhp/perf-suite/pkg/logger"
)

func main() {
	if err := cli.Execute(); err != nil {
		logger.Error("命令执行失败", zap.Error(err))
		logger.Sync()
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
