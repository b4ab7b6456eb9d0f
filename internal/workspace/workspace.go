// Package workspace owns the single working document of the service. Every
// mutation from HTTP, gRPC, the inbox watcher or the CLI goes through it.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/warband-roster/internal/attendance"
	"github.com/Billy-Davies-2/warband-roster/internal/catalog"
	"github.com/Billy-Davies-2/warband-roster/internal/clickhouse"
	"github.com/Billy-Davies-2/warband-roster/internal/dal"
	"github.com/Billy-Davies-2/warband-roster/internal/form"
	"github.com/Billy-Davies-2/warband-roster/internal/logger"
	"github.com/Billy-Davies-2/warband-roster/internal/models"
	"github.com/Billy-Davies-2/warband-roster/internal/pubsub"
	"github.com/Billy-Davies-2/warband-roster/internal/roster"
)

// ExportFileName is the suggested name of an exported document
const ExportFileName = "conquerors-blade-data.json"

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrGroupNotFound  = errors.New("group not found")
	// ErrServerAction rejects actions only the workspace itself issues
	ErrServerAction = errors.New("action is issued by the server")
)

// Options wires the workspace to its collaborators. Only Store is required.
type Options struct {
	Store      dal.DocumentDAL
	Events     pubsub.Publisher
	Attendance clickhouse.AttendanceRecorder
	// Catalog seeds a fresh document when nothing is stored yet
	Catalog *models.UnitConfig
	Now     func() time.Time
}

// Workspace holds the current state behind a mutex
type Workspace struct {
	mu       sync.Mutex
	state    roster.State
	store    dal.DocumentDAL
	events   pubsub.Publisher
	recorder clickhouse.AttendanceRecorder
	now      func() time.Time
	log      *slog.Logger
}

// New restores the latest stored document as clean state, or starts from an
// empty document with the configured catalog.
func New(opts Options) (*Workspace, error) {
	if opts.Store == nil {
		return nil, errors.New("workspace: a document store is required")
	}
	w := &Workspace{
		store:    opts.Store,
		events:   opts.Events,
		recorder: opts.Attendance,
		now:      opts.Now,
		log:      logger.With("workspace"),
	}
	if w.now == nil {
		w.now = time.Now
	}

	doc, err := opts.Store.Latest()
	switch {
	case err == nil:
		w.state = roster.State{Document: *doc}
		w.log.Info("Restored saved document", "players", len(doc.Players), "groups", len(doc.Groups))
	case errors.Is(err, dal.ErrNoDocument):
		fresh := roster.NewDocument()
		if opts.Catalog != nil {
			fresh.UnitConfig = catalog.Clone(*opts.Catalog)
		}
		w.state = roster.State{Document: fresh}
	default:
		return nil, fmt.Errorf("restore document: %w", err)
	}
	return w, nil
}

// State returns the current state
func (w *Workspace) State() roster.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Document returns the current document
func (w *Workspace) Document() models.Document {
	return w.State().Document
}

// Dispatch applies one action and announces it when the document changed
func (w *Workspace) Dispatch(a roster.Action) roster.State {
	w.mu.Lock()
	prev := w.state
	w.state = roster.Apply(prev, a)
	next := w.state
	w.mu.Unlock()

	changed := roster.Changed(prev.Document, next.Document)
	if changed {
		w.log.Info("Action applied", "action", a.Type())
		w.publish(pubsub.DocumentChanged, map[string]any{"action": string(a.Type())})
	} else {
		w.log.Debug("Action left document unchanged", "action", a.Type())
	}
	return next
}

// Handle applies an action received from a client. Attendance imports go
// through ImportAttendance so parse errors reach the caller and the import
// is recorded; SAVE_SUCCESS is refused.
func (w *Workspace) Handle(ctx context.Context, a roster.Action) (roster.State, error) {
	switch a := a.(type) {
	case roster.SaveSuccess:
		return w.State(), fmt.Errorf("%w: %s", ErrServerAction, a.Type())
	case roster.ImportTWAttendance:
		if _, err := w.ImportAttendance(ctx, []byte(a.JSONString)); err != nil {
			return w.State(), err
		}
		return w.State(), nil
	}
	return w.Dispatch(a), nil
}

// Load validates raw and replaces the document. Structural errors leave the
// current state untouched.
func (w *Workspace) Load(raw []byte) (roster.State, error) {
	doc, err := roster.DecodeDocument(raw)
	if err != nil {
		w.log.Warn("Rejected document load", "error", err)
		return w.State(), err
	}

	w.mu.Lock()
	w.state = roster.Apply(w.state, roster.LoadState{Document: doc})
	next := w.state
	w.mu.Unlock()

	w.log.Info("Document loaded", "players", len(doc.Players), "groups", len(doc.Groups))
	w.publish(pubsub.DocumentLoaded, map[string]any{"players": len(doc.Players), "groups": len(doc.Groups)})
	return next, nil
}

// Save stores the current document and marks the state clean. A storage
// failure keeps the unsaved flag.
func (w *Workspace) Save() (models.Snapshot, error) {
	// Held across the store write so no action lands between saving and
	// clearing the flag.
	w.mu.Lock()
	doc := w.state.Document
	snap, err := w.store.Save(&doc)
	if err != nil {
		w.mu.Unlock()
		w.log.Error("Failed to save document", "error", err)
		return models.Snapshot{}, fmt.Errorf("save document: %w", err)
	}
	w.state = roster.Apply(w.state, roster.SaveSuccess{})
	w.mu.Unlock()

	w.log.Info("Document saved", "snapshot_id", snap.ID)
	w.publish(pubsub.DocumentSaved, map[string]any{"snapshotId": snap.ID})
	return snap, nil
}

// Export returns the indented document and the file name to offer it under
func (w *Workspace) Export() ([]byte, string, error) {
	data, err := roster.EncodeDocument(w.Document())
	if err != nil {
		return nil, "", fmt.Errorf("encode document: %w", err)
	}
	return data, ExportFileName, nil
}

// ImportAttendance parses a signup export and installs it. On a parse error
// nothing changes. Matched entries are then recorded to the history sink;
// recording failures are logged only.
func (w *Workspace) ImportAttendance(ctx context.Context, raw []byte) (attendance.Outcome, error) {
	signups, err := attendance.Parse(raw)
	if err != nil {
		w.log.Warn("Rejected attendance import", "error", err)
		return attendance.Outcome{}, err
	}

	w.mu.Lock()
	out := attendance.Match(signups, w.state.Document.Players)
	w.state = roster.Apply(w.state, roster.ImportTWAttendance{JSONString: string(raw)})
	w.mu.Unlock()

	accepted, maybe, declined := out.Counts()
	w.log.Info("Attendance imported", "accepted", accepted, "maybe", maybe, "declined", declined)
	w.publish(pubsub.AttendanceImported, map[string]any{"accepted": accepted, "maybe": maybe, "declined": declined})

	if w.recorder != nil {
		records := out.Records(uuid.NewString(), w.now().UTC())
		if err := w.recorder.RecordImport(ctx, records); err != nil {
			w.log.Error("Failed to record attendance history", "error", err, "records", len(records))
		}
	}
	return out, nil
}

// AttendanceHistory aggregates recorded imports per player
func (w *Workspace) AttendanceHistory(ctx context.Context) (map[string]models.AttendanceCount, error) {
	if w.recorder == nil {
		return map[string]models.AttendanceCount{}, nil
	}
	return w.recorder.Counts(ctx)
}

// Snapshots lists stored snapshots newest first
func (w *Workspace) Snapshots(limit int) ([]models.Snapshot, error) {
	return w.store.History(limit)
}

// Player looks a player up by id
func (w *Workspace) Player(id string) (models.Player, error) {
	p, ok := roster.FindPlayer(w.Document(), id)
	if !ok {
		return models.Player{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return p, nil
}

// GenerateForm renders the form for a player in the given version (0 = latest)
func (w *Workspace) GenerateForm(playerID string, version int) (string, error) {
	doc := w.Document()
	p, ok := roster.FindPlayer(doc, playerID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	return form.Generate(p, doc.UnitConfig, form.Options{Version: version, Prefill: true})
}

// SubmitForm parses a filled-in form and replaces the player's unit sets
func (w *Workspace) SubmitForm(playerID, text string) (form.Result, error) {
	doc := w.Document()
	if _, ok := roster.FindPlayer(doc, playerID); !ok {
		return form.Result{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	res, err := form.Parse(text, catalog.AllNames(doc.UnitConfig))
	if err != nil {
		return form.Result{}, err
	}
	w.Dispatch(roster.ParsePlayerUnitsForm{PlayerID: playerID, FormData: text})
	return res, nil
}

// GroupSummary renders the copyable text block for a group
func (w *Workspace) GroupSummary(groupID string) (string, error) {
	text, ok := roster.GroupSummary(w.Document(), groupID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	return text, nil
}

// SearchUnits finds players owning units matching term
func (w *Workspace) SearchUnits(term string) []roster.UnitMatch {
	return roster.SearchUnits(w.Document(), term)
}

func (w *Workspace) publish(eventType string, payload map[string]any) {
	if w.events == nil {
		return
	}
	w.events.Publish(pubsub.Event{Type: eventType, Payload: payload})
}
