package testdb

import (
	"fmt"
	"time"
)

// Directive selects what EnsureDatabase does with an existing database.
type Directive int

const (
	// DirectiveCreate drops any existing database and builds a fresh one
	// that Teardown drops again.
	DirectiveCreate Directive = iota
	// DirectiveReuse keeps a marked database untouched and otherwise
	// creates it or brings it up to date.
	DirectiveReuse
	// DirectiveForceRecreate rebuilds the database and clears its mark.
	DirectiveForceRecreate
)

// DirectiveFromFlags maps --reuse-db and --create-db to a directive;
// --create-db wins when both are given.
func DirectiveFromFlags(reuseDB, createDB bool) Directive {
	switch {
	case createDB:
		return DirectiveForceRecreate
	case reuseDB:
		return DirectiveReuse
	default:
		return DirectiveCreate
	}
}

func (d Directive) String() string {
	switch d {
	case DirectiveCreate:
		return "create"
	case DirectiveReuse:
		return "reuse"
	case DirectiveForceRecreate:
		return "force-recreate"
	default:
		return fmt.Sprintf("Directive(%d)", int(d))
	}
}

// Action is what EnsureDatabase ended up doing.
type Action int

const (
	ActionCreated Action = iota
	ActionReused
	ActionRecreated
	// ActionMigrated means an existing unmarked database was kept and
	// brought up to date.
	ActionMigrated
)

func (a Action) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionReused:
		return "reused"
	case ActionRecreated:
		return "recreated"
	case ActionMigrated:
		return "migrated"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Outcome reports one EnsureDatabase call.
type Outcome struct {
	Name              string
	Directive         Directive
	Action            Action
	MigrationsApplied int
	Duration          time.Duration
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s: %s (%s, %d migrations, %s)", o.Name, o.Action, o.Directive, o.MigrationsApplied, o.Duration.Round(time.Millisecond))
}
