// Package sync implements the reconciliation engine between the in-memory
// stores, the embedded local database and the remote CouchDB mirror.
//
// Two timers drive it: a short debounce that flushes in-memory state into
// the local database after a burst of edits settles, and a longer one that
// runs a full bidirectional exchange. Every exchange is serialized through
// one lock; a periodic trigger that finds an exchange in flight is dropped,
// a manual one waits its turn.
package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/numisapp/numis-server/internal/domain"
	"github.com/numisapp/numis-server/internal/errors"
	"github.com/numisapp/numis-server/internal/remote"
	"github.com/numisapp/numis-server/internal/store"
)

// State is the engine's observable lifecycle state.
type State string

// Engine states.
const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateError   State = "error"
)

// Status is a point-in-time view of the engine.
type Status struct {
	State        State      `json:"state"`
	Message      string     `json:"message,omitempty"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
}

// CoinStore is the slice of the collection store the engine needs.
type CoinStore interface {
	Coins() []domain.Coin
	ReplaceAll(coins []domain.Coin)
}

// TagStore is the slice of the tag registry the engine needs.
type TagStore interface {
	All() []domain.TagDefinition
	ReplaceAll(tags []domain.TagDefinition)
}

// LocalDatabase is the embedded document store holding the local copy of
// the sync document.
type LocalDatabase interface {
	GetSyncDocument(ctx context.Context) (*domain.SyncDocument, error)
	PutSyncDocument(ctx context.Context, doc *domain.SyncDocument) (string, error)
	ReplaceSyncDocument(ctx context.Context, doc *domain.SyncDocument) error
	DeleteSyncDocument(ctx context.Context) error
}

// RemoteClient is the transport to the CouchDB mirror.
type RemoteClient interface {
	GetDocument(ctx context.Context, creds remote.Credentials) (*domain.SyncDocument, error)
	PutDocument(ctx context.Context, creds remote.Credentials, doc *domain.SyncDocument) (string, error)
	Ping(ctx context.Context, creds remote.Credentials) error
}

// Engine coordinates local flushes and remote exchanges. It implements
// the stores' ChangeNotifier; wire it with SetNotifier after construction.
type Engine struct {
	// exchangeMu serializes every local flush and remote exchange.
	exchangeMu stdsync.Mutex

	statusMu stdsync.RWMutex
	state    State
	message  string
	lastSync *time.Time

	coins  CoinStore
	tags   TagStore
	local  LocalDatabase
	client RemoteClient
	kv     store.KV
	logger *slog.Logger

	flushDebounce    *Debouncer
	exchangeDebounce *Debouncer
}

// New creates an engine. debounceInterval is the settle time before an
// edit burst is flushed locally; exchangeInterval the settle time before
// a full remote exchange.
func New(coins CoinStore, tags TagStore, local LocalDatabase, client RemoteClient, kv store.KV, logger *slog.Logger, debounceInterval, exchangeInterval time.Duration) *Engine {
	e := &Engine{
		state:  StateIdle,
		coins:  coins,
		tags:   tags,
		local:  local,
		client: client,
		kv:     kv,
		logger: logger,
	}
	e.flushDebounce = NewDebouncer(debounceInterval, e.flushQuietly)
	e.exchangeDebounce = NewDebouncer(exchangeInterval, e.exchangeQuietly)
	return e
}

// Changed re-arms both timers. Called by the stores after every mutation.
func (e *Engine) Changed() {
	e.flushDebounce.Trigger()
	e.exchangeDebounce.Trigger()
}

// Stop cancels pending timers. An exchange already running completes.
func (e *Engine) Stop() {
	e.flushDebounce.Stop()
	e.exchangeDebounce.Stop()
}

// Status returns the current engine state.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()

	return Status{State: e.state, Message: e.message, LastSyncTime: e.lastSync}
}

// SyncNow runs a full exchange, waiting for any in-flight one to finish
// first. Failures are surfaced both in the return value and the Error
// state; in-memory state is never rolled back.
func (e *Engine) SyncNow(ctx context.Context) error {
	e.exchangeMu.Lock()
	defer e.exchangeMu.Unlock()

	e.setSyncing()
	if err := e.exchange(ctx); err != nil {
		e.setError(err)
		return err
	}
	e.setSynced()
	return nil
}

// ForceFullRefresh discards the local copy of the sync document, pulls
// fresh from the remote and reconciles in-memory state. Recovery path for
// a corrupted or divergent local database.
func (e *Engine) ForceFullRefresh(ctx context.Context) error {
	e.exchangeMu.Lock()
	defer e.exchangeMu.Unlock()

	e.setSyncing()
	if err := e.forceRefresh(ctx); err != nil {
		e.setError(err)
		return err
	}
	e.setSynced()
	return nil
}

// SetCredentials stores the remote credentials used by future exchanges.
func (e *Engine) SetCredentials(ctx context.Context, creds remote.Credentials) error {
	return remote.SaveCredentials(ctx, e.kv, creds)
}

// TestConnection checks remote reachability with the stored credentials.
func (e *Engine) TestConnection(ctx context.Context) error {
	creds, _, err := remote.LoadCredentials(ctx, e.kv)
	if err != nil {
		return err
	}
	return e.client.Ping(ctx, creds)
}

// flushQuietly is the debounce target: a local-only upsert. Failures go
// to the Error state but are otherwise swallowed, the in-memory state
// stays authoritative.
func (e *Engine) flushQuietly() {
	e.exchangeMu.Lock()
	defer e.exchangeMu.Unlock()

	if err := e.flushLocal(context.Background()); err != nil {
		e.logger.Warn("local flush failed", "error", err)
		e.setError(err)
	}
}

// exchangeQuietly is the periodic timer target. Dropped when an exchange
// is already in flight; failures are logged, never surfaced.
func (e *Engine) exchangeQuietly() {
	if !e.exchangeMu.TryLock() {
		e.logger.Debug("periodic sync skipped, exchange in flight")
		return
	}
	defer e.exchangeMu.Unlock()

	e.setSyncing()
	if err := e.exchange(context.Background()); err != nil {
		e.logger.Warn("periodic sync failed", "error", err)
		e.setError(err)
		return
	}
	e.setSynced()
}

// flushLocal upserts the in-memory state into the local database using
// fetch-rev-then-put. The engine is the only local writer, so the put
// cannot conflict. Caller holds exchangeMu.
func (e *Engine) flushLocal(ctx context.Context) error {
	doc := domain.NewSyncDocument(e.coins.Coins(), e.tags.All())

	current, err := e.local.GetSyncDocument(ctx)
	switch {
	case err == nil:
		doc.Rev = current.Rev
	case errors.Is(err, store.ErrDocNotFound):
		// first write
	default:
		return errors.LocalUnavailable("could not read local sync document").WithCause(err)
	}

	if _, err := e.local.PutSyncDocument(ctx, doc); err != nil {
		return errors.LocalUnavailable("could not write local sync document").WithCause(err)
	}
	return nil
}

// exchange runs one serialized bidirectional pass: flush the in-memory
// state locally, pull the remote document, reconcile, and push local
// edits back. Caller holds exchangeMu.
func (e *Engine) exchange(ctx context.Context) error {
	if err := e.flushLocal(ctx); err != nil {
		return err
	}

	// Absent credentials mean an unauthenticated endpoint, not an error.
	creds, _, err := remote.LoadCredentials(ctx, e.kv)
	if err != nil {
		return err
	}

	remoteDoc, err := e.client.GetDocument(ctx, creds)
	if errors.Is(err, errors.ErrNotFound) {
		// Empty mirror: seed it with the local state.
		return e.push(ctx, creds, "")
	}
	if err != nil {
		return err
	}

	return e.reconcile(ctx, creds, remoteDoc)
}

// reconcile merges a pulled remote document with the in-memory state. A
// mirror still on the revision recorded by the previous exchange has not
// changed, so any divergence is a local edit and is pushed. A mirror on
// an unknown revision wins wholesale: whole-document replacement, no
// merge logic. When content already matches, nothing is written anywhere
// beyond the revision bookmark.
func (e *Engine) reconcile(ctx context.Context, creds remote.Credentials, remoteDoc *domain.SyncDocument) error {
	current := domain.NewSyncDocument(e.coins.Coins(), e.tags.All())
	if current.ContentEquals(remoteDoc) {
		e.rememberRemoteRev(ctx, remoteDoc.Rev)
		return nil
	}

	if remoteDoc.Rev != "" && remoteDoc.Rev == e.lastRemoteRev(ctx) {
		return e.push(ctx, creds, remoteDoc.Rev)
	}

	e.tags.ReplaceAll(remoteDoc.Tags)
	e.coins.ReplaceAll(remoteDoc.Coins)

	if err := e.local.ReplaceSyncDocument(ctx, remoteDoc); err != nil {
		return errors.LocalUnavailable("could not apply pulled document locally").WithCause(err)
	}
	e.rememberRemoteRev(ctx, remoteDoc.Rev)
	return nil
}

// push uploads the in-memory state to the mirror. rev names the remote
// revision the upload replaces; empty creates the document. A revision
// conflict surfaces as an error and the next exchange pulls the winner.
func (e *Engine) push(ctx context.Context, creds remote.Credentials, rev string) error {
	doc := domain.NewSyncDocument(e.coins.Coins(), e.tags.All())
	doc.Rev = rev

	newRev, err := e.client.PutDocument(ctx, creds, doc)
	if err != nil {
		return err
	}
	e.rememberRemoteRev(ctx, newRev)
	return nil
}

// lastRemoteRev returns the mirror revision recorded by the previous
// exchange, or empty when none was recorded.
func (e *Engine) lastRemoteRev(ctx context.Context) string {
	data, err := e.kv.Get(ctx, store.KeyRemoteRev)
	if err != nil {
		return ""
	}
	return string(data)
}

// rememberRemoteRev bookmarks the mirror revision this exchange settled
// on. A failed write only costs the shortcut: the next exchange falls
// back to remote-wins reconciliation.
func (e *Engine) rememberRemoteRev(ctx context.Context, rev string) {
	if err := e.kv.Set(ctx, store.KeyRemoteRev, []byte(rev)); err != nil {
		e.logger.Warn("could not record remote revision", "error", err)
	}
}

// forceRefresh deletes the local document and pulls unconditionally.
// An empty mirror leaves the in-memory state untouched. Caller holds
// exchangeMu.
func (e *Engine) forceRefresh(ctx context.Context) error {
	if err := e.local.DeleteSyncDocument(ctx); err != nil {
		return errors.LocalUnavailable("could not delete local sync document").WithCause(err)
	}

	creds, _, err := remote.LoadCredentials(ctx, e.kv)
	if err != nil {
		return err
	}

	remoteDoc, err := e.client.GetDocument(ctx, creds)
	if errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	// The local copy was just discarded, so the mirror wins regardless
	// of which revision was bookmarked.
	e.rememberRemoteRev(ctx, "")
	return e.reconcile(ctx, creds, remoteDoc)
}

func (e *Engine) setSyncing() {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.state = StateSyncing
	e.message = ""
}

func (e *Engine) setSynced() {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.state = StateIdle
	e.message = ""
	now := time.Now()
	e.lastSync = &now
}

func (e *Engine) setError(err error) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.state = StateError
	e.message = err.Error()
}
