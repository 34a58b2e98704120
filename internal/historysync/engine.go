// Package historysync keeps a client-side view of an account's history in
// step with the server, with optimistic submissions and a local backup used
// only to recover history the server has lost.
package historysync

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/prompt-history/internal/client"
)

var ErrNoSession = errors.New("historysync: no session established")

// Remote is the server side of the history. *client.Client implements it.
type Remote interface {
	ListHistory(ctx context.Context) ([]client.Message, error)
	SubmitPrompt(ctx context.Context, prompt string) (client.Message, error)
	ClearHistory(ctx context.Context) error
}

type EntryState int

const (
	// Placeholder is a submission still waiting on the server.
	Placeholder EntryState = iota
	Confirmed
)

func (s EntryState) String() string {
	if s == Placeholder {
		return "placeholder"
	}
	return "confirmed"
}

type Entry struct {
	State   EntryState
	Message client.Message
}

const placeholderPrefix = "opt-"

// Engine owns the in-memory view for one account at a time. It is safe for
// concurrent use; submissions may resolve in any order.
type Engine struct {
	remote Remote
	backup Backup

	mu      sync.Mutex
	account uint64
	// epoch changes whenever the session changes so late results can be dropped
	epoch   uint64
	entries []Entry
	subs    map[int]func([]Entry)
	nextSub int

	// persistMu spans snapshot and Save so backups land in view order.
	persistMu sync.Mutex
	// notifyMu spans snapshot and delivery so subscribers see views in order.
	notifyMu sync.Mutex
}

func New(remote Remote, backup Backup) *Engine {
	if backup == nil {
		backup = NewMemoryBackup()
	}
	return &Engine{
		remote: remote,
		backup: backup,
		subs:   make(map[int]func([]Entry)),
	}
}

// Establish starts a session for accountID and reconciles with the server.
// A non-empty remote history wins. An empty one is repopulated from the local
// backup by replaying each cached prompt in order, one at a time.
func (e *Engine) Establish(ctx context.Context, accountID uint64) error {
	if accountID == 0 {
		return ErrNoSession
	}
	e.mu.Lock()
	e.account = accountID
	e.epoch++
	epoch := e.epoch
	e.entries = nil
	e.mu.Unlock()
	e.notify()

	remote, err := e.remote.ListHistory(ctx)
	if err != nil {
		return err
	}

	if len(remote) == 0 {
		local, lerr := e.backup.Load(ctx, accountID)
		if lerr != nil {
			log.Printf("[sync] load backup user=%d: %v", accountID, lerr)
		}
		if len(local) > 0 {
			e.replay(ctx, accountID, local)
			if remote, err = e.remote.ListHistory(ctx); err != nil {
				return err
			}
		}
	}

	if !e.replaceAll(epoch, remote) {
		return nil
	}
	e.persist(ctx, epoch)
	e.notify()
	return nil
}

// replay must stay sequential: the server timestamps each prompt on arrival.
func (e *Engine) replay(ctx context.Context, accountID uint64, local []client.Message) {
	replayed := 0
	for _, m := range local {
		if strings.TrimSpace(m.Prompt) == "" {
			continue
		}
		if _, err := e.remote.SubmitPrompt(ctx, m.Prompt); err != nil {
			log.Printf("[sync] replay prompt failed user=%d: %v", accountID, err)
			continue
		}
		replayed++
	}
	log.Printf("[sync] replayed %d/%d cached prompts user=%d", replayed, len(local), accountID)
}

// replaceAll installs msgs as the confirmed view. Placeholders of submissions
// still in flight are kept after them.
func (e *Engine) replaceAll(epoch uint64, msgs []client.Message) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return false
	}
	pending := e.placeholdersLocked()
	e.entries = make([]Entry, 0, len(msgs)+len(pending))
	for _, m := range msgs {
		e.entries = append(e.entries, Entry{State: Confirmed, Message: m})
	}
	e.entries = append(e.entries, pending...)
	return true
}

func (e *Engine) placeholdersLocked() []Entry {
	var out []Entry
	for _, en := range e.entries {
		if en.State == Placeholder {
			out = append(out, en)
		}
	}
	return out
}

// Submit shows prompt immediately as a placeholder, then swaps in the
// server's entry. On failure the placeholder is removed and the error returned.
func (e *Engine) Submit(ctx context.Context, prompt string) (client.Message, error) {
	e.mu.Lock()
	if e.account == 0 {
		e.mu.Unlock()
		return client.Message{}, ErrNoSession
	}
	epoch := e.epoch
	ph := client.Message{
		ID:        placeholderPrefix + uuid.NewString(),
		Prompt:    prompt,
		Response:  "…",
		CreatedAt: time.Now().UTC(),
	}
	e.entries = append(e.entries, Entry{State: Placeholder, Message: ph})
	e.mu.Unlock()
	e.notify()

	msg, err := e.remote.SubmitPrompt(ctx, prompt)

	e.mu.Lock()
	idx := e.indexLocked(epoch, ph.ID)
	if idx < 0 {
		// session changed while in flight
		e.mu.Unlock()
		return msg, err
	}
	if err != nil {
		e.entries = append(e.entries[:idx], e.entries[idx+1:]...)
		e.mu.Unlock()
		e.notify()
		return client.Message{}, err
	}
	if e.indexLocked(epoch, msg.ID) >= 0 {
		// a refetch during the flight already brought the server's entry
		e.entries = append(e.entries[:idx], e.entries[idx+1:]...)
	} else {
		e.entries[idx] = Entry{State: Confirmed, Message: msg}
	}
	e.mu.Unlock()

	e.persist(ctx, epoch)
	e.notify()
	return msg, nil
}

func (e *Engine) indexLocked(epoch uint64, id string) int {
	if e.epoch != epoch {
		return -1
	}
	for i, en := range e.entries {
		if en.Message.ID == id {
			return i
		}
	}
	return -1
}

// Clear empties the remote history, then the confirmed view and the local
// backup. Submissions still in flight stay and complete normally. Unlike
// backup writes elsewhere, failures here are returned.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	account, epoch := e.account, e.epoch
	e.mu.Unlock()
	if account == 0 {
		return ErrNoSession
	}

	if err := e.remote.ClearHistory(ctx); err != nil {
		return err
	}

	e.persistMu.Lock()
	e.mu.Lock()
	if e.epoch == epoch {
		e.entries = e.placeholdersLocked()
	}
	e.mu.Unlock()
	err := e.backup.Delete(ctx, account)
	e.persistMu.Unlock()

	e.notify()
	return err
}

// Reset drops the session without touching the backup, as on logout.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.account = 0
	e.epoch++
	e.entries = nil
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) Account() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.account
}

// Entries returns a snapshot of the view, placeholders included.
func (e *Engine) Entries() []Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Entry{}, e.entries...)
}

// Messages returns the confirmed messages in view order.
func (e *Engine) Messages() []client.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.confirmedLocked()
}

func (e *Engine) confirmedLocked() []client.Message {
	out := make([]client.Message, 0, len(e.entries))
	for _, en := range e.entries {
		if en.State == Confirmed {
			out = append(out, en.Message)
		}
	}
	return out
}

// Subscribe registers fn to receive a snapshot after every change to the
// view. Calls are serialized and arrive in view order. fn runs on the
// goroutine that made the change and must not call Establish, Submit, Clear
// or Reset.
func (e *Engine) Subscribe(fn func([]Entry)) (cancel func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

func (e *Engine) notify() {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()
	snapshot := append([]Entry{}, e.entries...)
	fns := make([]func([]Entry), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}

// persist writes the confirmed view to the backup. Best-effort.
func (e *Engine) persist(ctx context.Context, epoch uint64) {
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.mu.Lock()
	if e.epoch != epoch || e.account == 0 {
		e.mu.Unlock()
		return
	}
	account := e.account
	msgs := e.confirmedLocked()
	e.mu.Unlock()

	if err := e.backup.Save(ctx, account, msgs); err != nil {
		log.Printf("[sync] save backup user=%d: %v", account, err)
	}
}
