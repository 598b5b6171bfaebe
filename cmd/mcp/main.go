// Command mcp serves the calculate tool over MCP stdio. Logs go to stderr so
// stdout stays reserved for the protocol.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"calculator-api/internal/calculator"
	"calculator-api/internal/config"
	"calculator-api/internal/mcptool"
	"calculator-api/internal/observability"
	"calculator-api/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// zap's production and development configs both write to stderr.
	if err := observability.InitLogger(cfg.LogLevel, cfg.Env); err != nil {
		return err
	}
	defer observability.SyncLogger()

	calc := calculator.New(
		calculator.WithCaseInsensitive(cfg.Calculator.CaseInsensitive),
		calculator.WithSymbols(cfg.Calculator.Symbols),
	)
	s := mcptool.NewServer(cfg.Version, service.New(calc), observability.Logger)

	observability.Logger.Info("mcp server started", zap.String("transport", "stdio"))
	return server.ServeStdio(s)
}
