package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mohsen-hany-dev/ivasms-otp/internal/config"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/dispatch"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/format"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/ivasms"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/otp"
	"github.com/mohsen-hany-dev/ivasms-otp/internal/store"
)

// sessionAccount is the pseudo-account name used for the account-independent
// session token. Its cursor lives in the store under this name like any
// other account's.
const sessionAccount = "api_session"

// Fetcher lists messages for an account strictly after a cursor.
type Fetcher interface {
	Messages(ctx context.Context, token, accountName string, since otp.Key) ([]*otp.Record, error)
}

// TokenSource hands out session tokens for accounts.
type TokenSource interface {
	Acquire(ctx context.Context, account config.Account) (string, error)
	Invalidate(account string)
	FallbackToken() string
}

// Poller owns one relay loop: configuration tables are reloaded from the
// data directory at the top of every cycle, so account and group edits take
// effect without a restart.
type Poller struct {
	cfg        *config.Runtime
	dataDir    string
	tokens     TokenSource
	fetcher    Fetcher
	store      *store.Store
	dispatcher *dispatch.Dispatcher
}

func New(cfg *config.Runtime, dataDir string, tokens TokenSource, fetcher Fetcher, st *store.Store, dispatcher *dispatch.Dispatcher) *Poller {
	return &Poller{
		cfg:        cfg,
		dataDir:    dataDir,
		tokens:     tokens,
		fetcher:    fetcher,
		store:      st,
		dispatcher: dispatcher,
	}
}

// Run executes cycles until ctx is cancelled. With once set it returns
// after the first cycle.
func (p *Poller) Run(ctx context.Context, once bool) error {
	ticker := time.NewTicker(p.cfg.PollInterval())
	defer ticker.Stop()

	for {
		if err := p.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("cycle failed")
		}
		if once {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs one fetch-and-relay pass over all enabled accounts.
func (p *Poller) Cycle(ctx context.Context) error {
	accounts, err := config.LoadAccounts(p.dataDir)
	if err != nil {
		return err
	}
	groupRows, err := config.LoadGroups(p.dataDir)
	if err != nil {
		return err
	}
	groups := config.EnabledGroups(groupRows, p.cfg.TelegramChatID)
	if len(groups) == 0 {
		log.Warn().Msg("no enabled groups, skipping cycle")
		return nil
	}
	platforms, err := config.LoadPlatforms(p.dataDir)
	if err != nil {
		return err
	}
	countries, err := config.LoadCountries(p.dataDir)
	if err != nil {
		return err
	}
	renderer := format.NewRenderer(platforms, countries, p.cfg.UseCustomEmoji)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, t := range p.tasks(config.EnabledAccounts(accounts)) {
		t := t
		g.Go(func() error {
			err := p.process(gctx, t, groups, renderer)
			if err == nil {
				return nil
			}
			if gctx.Err() != nil {
				return gctx.Err()
			}
			// Account failures are isolated: log and move on so one bad
			// login or flaky fetch cannot stall the other accounts.
			log.Error().Err(err).Str("account", t.name).Msg("account pass failed")
			return nil
		})
	}
	return g.Wait()
}

// task pairs an account name with its token acquisition. The fallback
// session task has no invalidate hook: a static token is never refreshed.
type task struct {
	name       string
	acquire    func(ctx context.Context) (string, error)
	invalidate func()
}

func (p *Poller) tasks(accounts []config.Account) []task {
	tasks := make([]task, 0, len(accounts)+1)
	for _, acc := range accounts {
		tasks = append(tasks, task{
			name:       acc.Name,
			acquire:    func(ctx context.Context) (string, error) { return p.tokens.Acquire(ctx, acc) },
			invalidate: func() { p.tokens.Invalidate(acc.Name) },
		})
	}
	if tok := p.tokens.FallbackToken(); tok != "" {
		tasks = append(tasks, task{
			name:    sessionAccount,
			acquire: func(context.Context) (string, error) { return tok, nil },
		})
	}
	return tasks
}

// process runs one account's pass: fetch everything past the cursor, then
// relay in ascending order, committing after each delivered message. A
// message that fails delivery stops the account's pass so no newer message
// can leapfrog it; the whole batch is refetched next cycle.
func (p *Poller) process(ctx context.Context, t task, groups []config.Group, renderer *format.Renderer) error {
	token, err := t.acquire(ctx)
	if err != nil {
		return err
	}

	since := p.store.Cursor(t.name)
	records, err := p.fetcher.Messages(ctx, token, t.name, since)
	if errors.Is(err, ivasms.ErrUnauthorized) && t.invalidate != nil {
		// The cached token went stale server-side. Drop it, log in again
		// and give the fetch one more shot this cycle.
		log.Warn().Str("account", t.name).Msg("session token rejected, refreshing")
		t.invalidate()
		if token, err = t.acquire(ctx); err != nil {
			return err
		}
		records, err = p.fetcher.Messages(ctx, token, t.name, since)
	}
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		rendered := renderer.Render(rec)
		results := p.dispatcher.Send(ctx, groups, rendered.Text, rendered.CopyValue)
		if !p.dispatcher.Delivered(results) {
			log.Warn().
				Str("account", t.name).
				Int64("id", rec.ID).
				Msg("delivery incomplete, holding cursor")
			return nil
		}
		if err := p.store.Commit(t.name, rec); err != nil {
			return err
		}
		log.Info().
			Str("account", t.name).
			Int64("id", rec.ID).
			Str("platform", rec.Platform).
			Msg("relayed")
	}
	return nil
}
