// Package main is the command-line entry point for the model gateway.
// Usage:
//
//	modelgateway status
//	modelgateway models
//	modelgateway available -model phi3:mini
//	modelgateway chat -model phi3:mini [-system "be brief"] [-direct] Why is the sky blue?
//
// Configuration comes from config.yaml, .env and the environment
// (OLLAMA_API_URL, GATEWAY_LARGE_MODELS, LOG_LEVEL, ...).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"modelgateway/config"
	"modelgateway/internal/app"
	"modelgateway/internal/core"
	"modelgateway/internal/gateway"
	"modelgateway/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: modelgateway [-metrics-addr addr] [-version] <command> [flags]

commands:
  status      report whether Ollama is reachable
  models      list installed models
  available   check whether a model can serve requests (-model)
  chat        send a prompt to a model (-model, -system, -direct)`)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("modelgateway", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { usage(stderr) }
	metricsAddr := global.String("metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
	versionFlag := global.Bool("version", false, "Print version information")
	if err := global.Parse(args); err != nil {
		return exitUsage
	}

	if *versionFlag {
		fmt.Fprintln(stdout, "modelgateway", version)
		return exitOK
	}
	if global.NArg() == 0 {
		usage(stderr)
		return exitUsage
	}

	loaded, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "failed to load config:", err)
		return exitFail
	}
	if *metricsAddr != "" {
		loaded.Config.Metrics.Enabled = true
		loaded.Config.Metrics.Address = *metricsAddr
	}

	logger, err := logging.New(logging.Config{
		Level:  loaded.Config.Logging.Level,
		Format: loaded.Config.Logging.Format,
		Output: stderr,
	})
	if err != nil {
		fmt.Fprintln(stderr, "failed to configure logging:", err)
		return exitFail
	}
	slog.SetDefault(logger)

	application, err := app.New(app.Config{AppConfig: loaded, Logger: logger})
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		return exitFail
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := application.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if loaded.Config.Metrics.Enabled {
		if _, err := application.StartMetrics(loaded.Config.Metrics.Address); err != nil {
			logger.Error("failed to start metrics server", "error", err)
			return exitFail
		}
	}

	gw := application.Gateway()
	command, rest := global.Arg(0), global.Args()[1:]

	switch command {
	case "status":
		return runStatus(ctx, gw, stdout)
	case "models":
		return runModels(ctx, gw, stdout)
	case "available":
		return runAvailable(ctx, gw, rest, stdout, stderr)
	case "chat":
		return runChat(ctx, gw, rest, stdin, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		usage(stderr)
		return exitUsage
	}
}

func runStatus(ctx context.Context, gw *gateway.Gateway, stdout io.Writer) int {
	status := gw.Status(ctx)
	if !status.Connected {
		fmt.Fprintln(stdout, "disconnected:", status.Message)
		return exitFail
	}
	fmt.Fprintf(stdout, "connected: %s (version %s)\n", status.Message, status.Version)
	return exitOK
}

func runModels(ctx context.Context, gw *gateway.Gateway, stdout io.Writer) int {
	entries := gw.ListModels(ctx)

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\n", entry.ID, entry.DisplayName)
	}
	_ = tw.Flush()

	if len(entries) == 1 && entries[0].IsSentinel() {
		return exitFail
	}
	return exitOK
}

func runAvailable(ctx context.Context, gw *gateway.Gateway, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("available", flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "", "Model identifier, e.g. phi3:mini")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *model == "" {
		fmt.Fprintln(stderr, "available: -model is required")
		return exitUsage
	}

	if !gw.IsModelAvailable(ctx, *model) {
		fmt.Fprintf(stdout, "%s: not available\n", *model)
		return exitFail
	}
	fmt.Fprintf(stdout, "%s: available\n", *model)
	return exitOK
}

func runChat(ctx context.Context, gw *gateway.Gateway, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	model := fs.String("model", "", "Model identifier, e.g. phi3:mini")
	system := fs.String("system", "", "Optional system message")
	direct := fs.Bool("direct", false, "Use a single non-streaming generate call")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	prompt := strings.Join(fs.Args(), " ")
	if prompt == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			fmt.Fprintln(stderr, "chat: reading prompt:", err)
			return exitFail
		}
		prompt = strings.TrimSpace(string(data))
	}
	if prompt == "" {
		fmt.Fprintln(stderr, "chat: a prompt is required as arguments or on stdin")
		return exitUsage
	}

	var messages []core.ChatMessage
	if *system != "" {
		messages = append(messages, core.ChatMessage{Role: core.RoleSystem, Content: *system})
	}
	messages = append(messages, core.ChatMessage{Role: core.RoleUser, Content: prompt})

	text, err := gw.Send(ctx, core.GatewayRequest{
		Model:     *model,
		Messages:  messages,
		Streaming: !*direct,
	})
	if err != nil {
		var gwErr *core.GatewayError
		if errors.As(err, &gwErr) {
			fmt.Fprintf(stderr, "%s: %s\n", gwErr.Kind, gwErr.Message)
		} else {
			fmt.Fprintln(stderr, err)
		}
		if core.IsKind(err, core.ErrorKindInvalidRequest) {
			return exitUsage
		}
		return exitFail
	}

	if text == "" {
		text = gateway.EmptyResponsePlaceholder
	}
	fmt.Fprintln(stdout, text)
	return exitOK
}
