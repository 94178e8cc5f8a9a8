// Package migrate upgrades a SQLite database one schema version at a time.
//
// The schema version lives in `PRAGMA user_version`. Each Step moves the
// database from Version-1 to Version inside its own transaction, after which
// the file is compacted with VACUUM.
package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// Error is the default migrate errs class.
	Error = errs.Class("migrate")
	// ErrUnsupportedVersion is returned when the database was written by a
	// newer schema than this build knows about. The database is not touched.
	ErrUnsupportedVersion = errs.Class("unsupported schema version")
)

// Action is something a Step runs inside its transaction.
type Action interface {
	Run(log *zap.Logger, tx *sql.Tx) error
}

// SQL statements that are run in order.
type SQL []string

func (s SQL) Run(log *zap.Logger, tx *sql.Tx) error {
	for _, query := range s {
		if _, err := tx.Exec(query); err != nil {
			return Error.New("%s: %v", query, err)
		}
	}
	return nil
}

// Func is an arbitrary step action.
type Func func(log *zap.Logger, tx *sql.Tx) error

func (fn Func) Run(log *zap.Logger, tx *sql.Tx) error { return fn(log, tx) }

// Step upgrades the schema from Version-1 to Version.
type Step struct {
	Description string
	Version     int
	Action      Action
}

// Migration is an ordered table of steps.
type Migration struct {
	Steps []*Step
}

// TargetVersion is the schema version after every step has run.
func (m *Migration) TargetVersion() int {
	if len(m.Steps) == 0 {
		return 0
	}
	return m.Steps[len(m.Steps)-1].Version
}

// ValidateSteps checks that step versions are consecutive.
func (m *Migration) ValidateSteps() error {
	for i, step := range m.Steps {
		if step.Action == nil {
			return Error.New("step %d (%q) has no action", step.Version, step.Description)
		}
		if i > 0 && step.Version != m.Steps[i-1].Version+1 {
			return Error.New("step %d follows step %d", step.Version, m.Steps[i-1].Version)
		}
	}
	return nil
}

// stepFor returns the step that upgrades from version.
func (m *Migration) stepFor(version int) *Step {
	for _, step := range m.Steps {
		if step.Version == version+1 {
			return step
		}
	}
	return nil
}

// Check compares a stored version with the target without changing anything.
func (m *Migration) Check(version int) error {
	if target := m.TargetVersion(); version > target {
		return ErrUnsupportedVersion.New("database is at version %d, newest supported is %d", version, target)
	}
	return nil
}

// Run upgrades db to TargetVersion. A database already at the target is left
// alone; one past it fails with ErrUnsupportedVersion.
func (m *Migration) Run(log *zap.Logger, db *sql.DB) error {
	if err := m.ValidateSteps(); err != nil {
		return err
	}
	version, err := Version(db)
	if err != nil {
		return err
	}
	if err := m.Check(version); err != nil {
		return err
	}

	for target := m.TargetVersion(); version < target; version++ {
		step := m.stepFor(version)
		if step == nil {
			return Error.New("no migration step from version %d", version)
		}
		log.Info("migrating", zap.Int("from", version), zap.Int("to", step.Version), zap.String("step", step.Description))
		if err := runStep(log, db, step); err != nil {
			return err
		}

		// Compaction only reclaims space; the step is already committed.
		log.Info("compacting", zap.Int("version", step.Version))
		if _, err := db.Exec(`VACUUM`); err != nil {
			log.Warn("compaction failed", zap.Int("version", step.Version), zap.Error(err))
		}
	}
	return nil
}

func runStep(log *zap.Logger, db *sql.DB, step *Step) (err error) {
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, ignoreDone(tx.Rollback()))
		}
	}()

	if err := step.Action.Run(log, tx); err != nil {
		return Error.New("step %d (%s): %v", step.Version, step.Description, err)
	}
	if err := SetVersion(tx, step.Version); err != nil {
		return err
	}
	return Error.Wrap(tx.Commit())
}

func ignoreDone(err error) error {
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// Queryer is satisfied by *sql.DB and *sql.Tx.
type Queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

// Version reads the stored schema version.
func Version(db Queryer) (int, error) {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return 0, Error.New("read user_version: %v", err)
	}
	return version, nil
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// SetVersion writes the schema version. Inside a transaction it commits or
// rolls back with the rest of the transaction.
func SetVersion(db Execer, version int) error {
	if _, err := db.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, version)); err != nil {
		return Error.New("set user_version: %v", err)
	}
	return nil
}
