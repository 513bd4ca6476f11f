package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hanamilabs/pretender-bot/internal/domain"
	"github.com/hanamilabs/pretender-bot/internal/telemetry"
)

const defaultWebhookPath = "/telegram/webhook"

var allowedUpdates = []string{"message"}

// Handler consumes one classified update.
type Handler func(ctx context.Context, event domain.Event) error

// NewBotAPI connects to the Bot API and checks the token with getMe. The
// HTTP timeout always outlasts one long-poll request.
func NewBotAPI(logger *slog.Logger, token string, requestTimeout time.Duration, pollTimeoutSeconds int) (*tgbotapi.BotAPI, error) {
	timeout := requestTimeout
	if minimum := time.Duration(pollTimeoutSeconds)*time.Second + 10*time.Second; timeout < minimum {
		timeout = minimum
	}
	if err := tgbotapi.SetLogger(botLogger{logger: logger.With("component", "tgbotapi")}); err != nil {
		return nil, err
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	return bot, nil
}

type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

type RuntimeOptions struct {
	Workers            int
	PollTimeoutSeconds int
	DropPendingUpdates bool
}

// Runtime feeds updates from Telegram into a Handler through a bounded pool
// of workers.
type Runtime struct {
	logger     *slog.Logger
	bot        *tgbotapi.BotAPI
	classifier Classifier
	handler    Handler
	opts       RuntimeOptions

	workers chan struct{}
	wg      sync.WaitGroup
}

func NewRuntime(logger *slog.Logger, bot *tgbotapi.BotAPI, handler Handler, opts RuntimeOptions) *Runtime {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	return &Runtime{
		logger:     logger,
		bot:        bot,
		classifier: Classifier{BotID: bot.Self.ID},
		handler:    handler,
		opts:       opts,
		workers:    make(chan struct{}, opts.Workers),
	}
}

// Poll receives updates with getUpdates until ctx is done, then waits for
// in-flight handlers.
func (r *Runtime) Poll(ctx context.Context) error {
	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: r.opts.DropPendingUpdates}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = r.opts.PollTimeoutSeconds
	cfg.AllowedUpdates = allowedUpdates
	updates := r.bot.GetUpdatesChan(cfg)
	r.logger.Info("telegram polling started", "bot", r.bot.Self.UserName, "workers", r.opts.Workers)

	defer r.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if !r.acquire(ctx) {
				r.bot.StopReceivingUpdates()
				return nil
			}
			r.wg.Add(1)
			go func(u tgbotapi.Update) {
				defer r.release()
				r.dispatch(ctx, u)
			}(update)
		}
	}
}

// ServeWebhook registers webhookURL with Telegram and serves updates on
// listenAddr until ctx is done.
func (r *Runtime) ServeWebhook(ctx context.Context, webhookURL, listenAddr string) error {
	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("parse WEBHOOK_URL: %w", err)
	}
	wh.AllowedUpdates = allowedUpdates
	wh.DropPendingUpdates = r.opts.DropPendingUpdates
	if _, err := r.bot.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(WebhookPath(webhookURL), r.WebhookHandler(ctx))
	server := &http.Server{Addr: listenAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("telegram webhook listening", "addr", listenAddr, "path", WebhookPath(webhookURL))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	r.wg.Wait()
	return err
}

// WebhookHandler acknowledges each update once a worker has been reserved for
// it. Handling continues in the background under ctx.
func (r *Runtime) WebhookHandler(ctx context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		update, err := r.bot.HandleUpdate(req)
		if err != nil {
			r.logger.Warn("invalid webhook update", "error", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !r.acquire(req.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		r.wg.Add(1)
		go func(u tgbotapi.Update) {
			defer r.release()
			r.dispatch(ctx, u)
		}(*update)
		w.WriteHeader(http.StatusOK)
	})
}

// Wait blocks until every dispatched update has been handled.
func (r *Runtime) Wait() {
	r.wg.Wait()
}

func (r *Runtime) acquire(ctx context.Context) bool {
	select {
	case r.workers <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runtime) release() {
	<-r.workers
	r.wg.Done()
}

func (r *Runtime) dispatch(ctx context.Context, update tgbotapi.Update) {
	ctx = telemetry.WithCorrelation(ctx, "")
	logger := telemetry.LoggerWithCorr(ctx, r.logger)
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("update handler panicked", "update_id", update.UpdateID, "panic", rec)
		}
	}()

	event := r.classifier.Classify(update)
	if ignored, ok := event.(domain.Ignored); ok {
		logger.Debug("update ignored", "update_id", update.UpdateID, "reason", ignored.Reason)
	}
	if err := r.handler(ctx, event); err != nil {
		logger.Debug("update handled with error", "update_id", update.UpdateID, "error", err)
	}
}

// WebhookPath extracts the HTTP path the webhook should be served on.
func WebhookPath(webhookURL string) string {
	parsed, err := url.Parse(webhookURL)
	if err != nil {
		return defaultWebhookPath
	}
	p := strings.TrimSpace(parsed.Path)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
