package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nikitakreml/invest-track-app/internal/app"
	"github.com/nikitakreml/invest-track-app/internal/auth"
	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/server"
)

const usage = `usage:
  investtrack-server            start the HTTP API
  investtrack-server token ID   print a bearer token for user ID
`

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "token":
			if err := printToken(args[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "%v\n%s", err, usage)
				os.Exit(2)
			}
			return
		case "-h", "--help", "help":
			fmt.Fprint(os.Stdout, usage)
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q\n%s", args[0], usage)
			os.Exit(2)
		}
	}

	if err := serve(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func printToken(args []string) error {
	if len(args) != 1 {
		return errors.New("token requires exactly one user id")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}
	config, err := app.LoadConfig("")
	if err != nil {
		return err
	}
	token, err := auth.NewSigner(config.Auth).GenerateToken(userID)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func serve() error {
	a, err := app.NewApp(context.Background(), "")
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer a.Close()

	common.PrintBanner(a.Config, a.Logger)

	srv := server.NewServer(a)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.Logger.Info().
		Str("url", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)).
		Msg("Server ready")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		a.Logger.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		a.Logger.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	common.PrintShutdownBanner(a.Logger)
	return nil
}
