package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/cli/config"
	httpctrl "github.com/secmon-lab/gyges/pkg/controller/http"
	"github.com/secmon-lab/gyges/pkg/service/googledrive"
	"github.com/secmon-lab/gyges/pkg/service/worker"
	"github.com/secmon-lab/gyges/pkg/usecase"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var baseURL string
	var repoCfg config.Repository
	var slackCfg config.Slack
	var googleCfg config.Google
	var policyCfg config.Policy

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("GYGES_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Public base URL of this service (e.g. https://gyges.example.com)",
			Sources:     cli.EnvVars("GYGES_BASE_URL"),
			Destination: &baseURL,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, googleCfg.Flags()...)
	flags = append(flags, policyCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			policy, err := policyCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load notification policy")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			messenger, err := slackCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure Slack messenger")
			}

			oauth, err := googleCfg.Configure(baseURL)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Google OAuth")
			}

			uc := usecase.New(
				repo,
				googledrive.New(),
				oauth,
				messenger,
				baseURL+"/hooks/drive",
				usecase.WithFreshnessWindow(policy.FreshnessWindow()),
				usecase.WithDigestDefaults(policy.DigestHour, policy.DigestWeekdayValue()),
				usecase.WithOAuthAudience(googleCfg.ClientID()),
			)

			renewalWorker := worker.NewWatchRenewalWorker(uc, policy.RenewalInterval())
			if err := renewalWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start watch renewal worker")
			}
			defer renewalWorker.Stop()

			digestWorker := worker.NewDigestWorker(uc)
			if err := digestWorker.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start digest worker")
			}
			defer digestWorker.Stop()

			server := httpctrl.New(uc,
				httpctrl.WithSlackSigningSecret(slackCfg.SigningSecret()),
			)

			httpServer := &http.Server{
				Addr:              addr,
				Handler:           server,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("HTTP server starting", "addr", addr, "base_url", baseURL)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return goerr.Wrap(err, "HTTP server failed")
			case sig := <-sigCh:
				logging.Default().Info("shutting down", "signal", sig.String())
			case <-ctx.Done():
				logging.Default().Info("shutting down", "reason", "context cancelled")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shut down HTTP server")
			}

			return nil
		},
	}
}
