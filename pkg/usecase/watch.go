package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/model"
	"github.com/secmon-lab/gyges/pkg/domain/types"
	"github.com/secmon-lab/gyges/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// renewConcurrency bounds parallel provider calls during a renewal sweep
const renewConcurrency = 8

// connectChannel registers a fresh watch channel for the account and
// records its identity on the account. The existing cursor is kept so no
// feed entries are skipped across reconnects; only a first-time connect
// fetches the current frontier.
func (uc *UseCases) connectChannel(ctx context.Context, account *model.Account) error {
	cursor := account.Cursor
	if cursor == "" {
		token, err := uc.drive.GetStartPageToken(ctx, account.AccessToken)
		if err != nil {
			return goerr.Wrap(err, "failed to get start page token", goerr.V("accountID", account.ID))
		}
		cursor = token
	}

	channelID := types.ChannelID(uuid.NewString())
	ch, err := uc.drive.CreateWatchChannel(ctx, account.AccessToken, cursor, channelID, uc.webhookURL)
	if err != nil {
		return goerr.Wrap(err, "failed to create watch channel", goerr.V("accountID", account.ID))
	}

	account.ChannelID = ch.ID
	account.ResourceID = ch.ResourceID
	account.Cursor = cursor

	logging.From(ctx).Info("registered watch channel",
		"accountID", account.ID,
		"channelID", ch.ID,
		"expiresAt", ch.ExpiresAt)

	return nil
}

// stopChannel stops the account's current watch channel. Failures are
// logged and swallowed: an expired channel stops itself anyway.
func (uc *UseCases) stopChannel(ctx context.Context, account *model.Account) {
	if account.ChannelID == "" {
		return
	}

	if err := uc.drive.StopWatchChannel(ctx, account.AccessToken, account.ChannelID, account.ResourceID); err != nil {
		logging.From(ctx).Warn("failed to stop watch channel",
			"error", err,
			"accountID", account.ID,
			"channelID", account.ChannelID)
	}
}

// RenewWatchChannel replaces the account's watch channel before the
// provider expires it. The change-feed cursor survives the swap.
func (uc *UseCases) RenewWatchChannel(ctx context.Context, account *model.Account) error {
	if err := uc.EnsureValidToken(ctx, account); err != nil {
		return err
	}

	uc.stopChannel(ctx, account)

	if err := uc.connectChannel(ctx, account); err != nil {
		return err
	}

	account.UpdatedAt = uc.now()
	if err := uc.repo.Account().Put(ctx, account); err != nil {
		return goerr.Wrap(err, "failed to store renewed channel", goerr.V("accountID", account.ID))
	}

	return nil
}

// RenewAllWatchChannels sweeps every linked account and renews its watch
// channel. Per-account failures are logged and do not stop the sweep;
// unauthorized accounts are skipped until the user re-links.
func (uc *UseCases) RenewAllWatchChannels(ctx context.Context) error {
	accounts, err := uc.repo.Account().List(ctx)
	if err != nil {
		return err
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(renewConcurrency)

	for _, account := range accounts {
		if account.RefreshToken == "" {
			continue
		}

		grp.Go(func() error {
			if err := uc.RenewWatchChannel(ctx, account); err != nil {
				logging.From(ctx).Warn("failed to renew watch channel",
					"error", err,
					"accountID", account.ID)
			}
			return nil
		})
	}

	return grp.Wait()
}
