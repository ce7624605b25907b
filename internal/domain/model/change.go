package model

import "time"

// RecordKind tells which side of the registry a record belongs to.
type RecordKind string

// Record kinds.
const (
	KindFicha    RecordKind = "ficha"
	KindHallazgo RecordKind = "hallazgo"
)

// Valid reports whether k is a known kind.
func (k RecordKind) Valid() bool {
	return k == KindFicha || k == KindHallazgo
}

// RecordChange announces that a ficha or hallazgo was created or edited and
// must be swept against its counterparts.
type RecordChange struct {
	EventID  string     // unique id for idempotency
	Kind     RecordKind // which registry the record lives in
	RecordID string
	TS       time.Time
}
