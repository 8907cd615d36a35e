// Package undo implements the undo tracker of §4.9: a LIFO list of
// reversible units, executed in reverse on failure so a partially-applied
// command leaves no visible trace.
package undo

import (
	"context"
	"database/sql"
	"log"

	"github.com/innodbcluster/admin-engine/internal/metadata"
)

// Func is a reversible unit with no arguments: closing over whatever state
// it needs to undo a single step (spec.md §4.9 unit kind (a)).
type Func func(ctx context.Context) error

// unit is one entry in the tracker, either a Func or a Sql_undo_list bound
// to a designated instance provider.
type unit struct {
	fn       Func
	sqlUndo  *metadata.UndoLog
	sqlDB    *sql.DB
	canceled bool
}

// Tracker is the LIFO undo stack for one command (spec.md §4.9).
type Tracker struct {
	units []unit
}

// New returns an empty Tracker.
func New() *Tracker { return &Tracker{} }

// Add pushes a callable unit (kind (a)). It runs during undo in the
// position it was pushed, i.e. after every unit pushed later.
func (t *Tracker) Add(fn Func) {
	t.units = append(t.units, unit{fn: fn})
}

// AddBack pushes a callable unit that must undo *before* every other
// pending unit, regardless of push order (spec.md §4.9 "add_back", used for
// steps that must be reversed before other undo work, e.g. removing a
// managed channel before re-adding Metadata).
func (t *Tracker) AddBack(fn Func) {
	t.units = append([]unit{{fn: fn}}, t.units...)
}

// AddSQLUndo pushes a Sql_undo_list unit (kind (b)): a Metadata UndoLog that
// replays its inverses inside a local transaction against db when this
// tracker unwinds.
func (t *Tracker) AddSQLUndo(log *metadata.UndoLog, db *sql.DB) {
	t.units = append(t.units, unit{sqlUndo: log, sqlDB: db})
}

// Cancel marks the most recently added unit as neutral: already done, or no
// longer needed, so Execute skips it (spec.md §4.9 "a per-unit cancel()").
// Commands call this once a step they previously recorded undo for has been
// superseded by a later, successful step.
func (t *Tracker) Cancel() {
	if len(t.units) == 0 {
		return
	}
	t.units[len(t.units)-1].canceled = true
}

// Len reports how many units (including canceled ones) are pending.
func (t *Tracker) Len() int { return len(t.units) }

// Execute runs every unit in reverse insertion order, swallowing individual
// failures with a log message so later units still run (spec.md §4.9
// "execute()"). It returns the number of units that failed.
func (t *Tracker) Execute(ctx context.Context) int {
	failures := 0
	for idx := len(t.units) - 1; idx >= 0; idx-- {
		u := t.units[idx]
		if u.canceled {
			continue
		}
		var err error
		switch {
		case u.fn != nil:
			err = u.fn(ctx)
		case u.sqlUndo != nil:
			err = u.sqlUndo.Execute(ctx, u.sqlDB)
		}
		if err != nil {
			failures++
			log.Printf("undo: unit %d failed, continuing: %v", idx, err)
		}
	}
	t.units = nil
	return failures
}
