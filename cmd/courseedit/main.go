package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"courseeditor/internal/logger"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout).ExecuteContext(ctx)
	stop()

	if err != nil {
		logger.Log.Error("courseedit: команда завершилась ошибкой", zap.Error(err))
		_ = logger.Log.Sync()
		os.Exit(1)
	}
	_ = logger.Log.Sync()
}
