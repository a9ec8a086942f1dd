package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kingpin/v2"

	"github.com/kazz187/delegate/internal/config"
	"github.com/kazz187/delegate/pkg/clog"
)

var (
	app = kingpin.New("delegate-server", "Task delegation server for agent orchestration")

	runCmd = app.Command("run", "Run the server").Default()

	sentinelCmd         = app.Command("sentinel", "Run the server under a sentinel that restarts it on crash or binary update")
	sentinelBinary      = sentinelCmd.Flag("binary", "Binary to supervise (defaults to this executable)").String()
	sentinelDrain       = sentinelCmd.Flag("drain-timeout", "How long a draining server may keep running before it is stopped").Default("6m").Duration()
	sentinelGracePeriod = sentinelCmd.Flag("grace-period", "Time between SIGTERM and SIGKILL when stopping the server").Default("10s").Duration()

	vapidKeysCmd = app.Command("vapid-keys", "Generate a VAPID key pair for web push")
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	var err error
	switch command {
	case runCmd.FullCommand():
		env := loadEnv()
		setupLogger(env)
		err = run(env)
	case sentinelCmd.FullCommand():
		env := loadEnv()
		setupLogger(env)
		err = runSentinel(*sentinelBinary, *sentinelGracePeriod, *sentinelDrain)
	case vapidKeysCmd.FullCommand():
		err = generateVAPIDKeys()
	}
	if err != nil {
		slog.Error("delegate-server failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func loadEnv() *config.Env {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load env: %v\n", err)
		os.Exit(1)
	}
	return env
}

func setupLogger(env *config.Env) {
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
}
