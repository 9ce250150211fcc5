// Command bot is the entrypoint for the funding-rate arbitrage agent: it
// wires the venue clients, scanner, executor, state store, and orchestrator
// behind the shared bootstrap lifecycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/djienne/deltaarb/internal/bootstrap"
	"github.com/djienne/deltaarb/internal/executor"
	"github.com/djienne/deltaarb/internal/orchestrator"
	"github.com/djienne/deltaarb/internal/scanner"
	"github.com/djienne/deltaarb/internal/signing"
	"github.com/djienne/deltaarb/internal/state"
	"github.com/djienne/deltaarb/internal/telemetry"
	"github.com/djienne/deltaarb/internal/venue/extended"
	"github.com/djienne/deltaarb/internal/venue/pacifica"
)

var configFile = flag.String("config", "config.json", "path to the policy configuration file")

func main() {
	flag.Parse()

	app, err := bootstrap.NewApp(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
		os.Exit(1)
	}

	statePath := os.Getenv("STATE_FILE_PATH")
	if statePath == "" {
		statePath = "bot_state.json"
	}
	store, err := state.Open(statePath)
	if err != nil {
		app.Logger.Fatal("open state store", "error", err.Error())
	}

	metrics, err := telemetry.Init()
	if err != nil {
		app.Logger.Fatal("init telemetry", "error", err.Error())
	}

	extendedSigner := signing.NewStarkSigner(string(app.Cfg.Credentials.ExtendedStarkPrivateKey), string(app.Cfg.Credentials.ExtendedStarkPublicKey), app.Cfg.Credentials.ExtendedVaultID)
	pacificaSigner := signing.NewEd25519Signer(string(app.Cfg.Credentials.PacificaPrivateKey))

	extendedClient := extended.NewClient("https://api.extended.exchange", string(app.Cfg.Credentials.ExtendedAPIKey), extendedSigner, app.Logger)
	accountWS := pacifica.NewWSAccountInfo("wss://ws.pacifica.fi/account", app.Cfg.Credentials.PacificaWallet, pacificaSigner)
	pacificaClient := pacifica.NewClient("https://api.pacifica.fi", app.Cfg.Credentials.PacificaWallet, pacificaSigner, accountWS, app.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), app.Cfg.FetchTimeout())
	defer cancel()
	if err := extendedClient.CheckHealth(ctx); err != nil {
		app.Logger.Warn("extended health check failed at startup", "error", err.Error())
	}
	if err := pacificaClient.CheckHealth(ctx); err != nil {
		app.Logger.Warn("pacifica health check failed at startup", "error", err.Error())
	}

	sc := scanner.New(extendedClient, pacificaClient, app.Cfg, app.Logger)
	defer sc.Close()
	ex := executor.New(extendedClient, pacificaClient, app.Logger, metrics)
	orch := orchestrator.New(extendedClient, pacificaClient, sc, ex, store, app.Cfg, app.Logger, metrics)

	httpServer := bootstrap.NewHTTPServer(app.Cfg.MetricsPort, app.Logger)

	if err := app.Run(orch, httpServer); err != nil {
		app.Logger.Error("exiting with error", "error", err.Error())
		os.Exit(1)
	}
}
