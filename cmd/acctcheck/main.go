package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"acctcheck/internal/app"
	"acctcheck/internal/config"
	logx "acctcheck/pkg/logx"
)

func main() {
	var cfgPath, envPath string
	flag.StringVar(&cfgPath, "config", "", "optional YAML/JSON config overlay, watched for changes (default $CONFIG_FILE)")
	flag.StringVar(&envPath, "env", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	boot := logx.NewConsole("INFO").With(logx.String("comp", "main"))

	if err := config.LoadDotEnv(envPath); err != nil {
		boot.Error("fatal: load env file", logx.String("path", envPath), logx.Err(err))
		os.Exit(1)
	}
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_FILE")
	}

	a, err := app.New(app.Options{ConfigPath: cfgPath})
	if err != nil {
		boot.Error("fatal: invalid configuration", logx.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		boot.Error("fatal start", logx.Err(err))
		stop(boot, a, app.StopFatalError)
		os.Exit(1)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	reason := app.StopUnknown
loop:
	for {
		select {
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				if err := a.Reload(ctx); err != nil {
					boot.Warn("reload failed; keeping previous config", logx.Err(err))
				}
				continue
			case syscall.SIGTERM:
				reason = app.StopSIGTERM
			default:
				reason = app.StopSIGINT
			}
			break loop
		case <-a.Done():
			reason = app.StopFatalError
			break loop
		}
	}

	if reason == app.StopFatalError {
		boot.Error("fatal", logx.Err(a.Err()))
	}
	stop(boot, a, reason)
	if reason == app.StopFatalError {
		os.Exit(1)
	}
}

func stop(log logx.Logger, a *app.App, reason app.StopReason) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Stop(ctx, reason); err != nil {
		log.Warn("stop finished with error", logx.Err(err))
	}
}
