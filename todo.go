package calcore

import "time"

// Todo is a VTODO payload.
type Todo struct {
	Incidence

	DTDue      DateTime
	HasDueDate bool
	// HasStartDate distinguishes a set DTStart from the zero value; to-dos
	// commonly carry only a due date.
	HasStartDate bool

	Completed        time.Time
	HasCompletedDate bool
	// PercentComplete ranges 0 to 100.
	PercentComplete int
}

// NewTodo returns a to-do with the given UID, minting one when uid is empty.
func NewTodo(uid string) *Todo {
	return &Todo{Incidence: newIncidence(uid)}
}

func (t *Todo) ObjectBase() *IncidenceBase { return &t.IncidenceBase }

func (t *Todo) Clone() Object {
	c := *t
	c.Incidence = t.cloneIncidence()
	return &c
}

// IsCompleted reports whether the to-do has been finished, by completion
// date, status or percentage.
func (t *Todo) IsCompleted() bool {
	return t.HasCompletedDate || t.Status == StatusCompleted || t.PercentComplete >= 100
}

// SetCompleted marks the to-do finished at the given instant and syncs the
// status and percentage fields.
func (t *Todo) SetCompleted(at time.Time) {
	t.Completed = at.UTC().Truncate(time.Second)
	t.HasCompletedDate = true
	t.PercentComplete = 100
	t.Status = StatusCompleted
}

// ClearCompleted reverts a completed to-do to an in-process state without
// touching the percentage.
func (t *Todo) ClearCompleted() {
	t.Completed = time.Time{}
	t.HasCompletedDate = false
	if t.Status == StatusCompleted {
		t.Status = StatusNone
	}
}

// EffectiveDue resolves the due instant.  To-dos without an explicit due
// date use the start plus duration when both are present.
func (t *Todo) EffectiveDue() DateTime {
	if t.HasDueDate {
		return t.DTDue
	}
	if t.HasStartDate && t.HasDuration {
		return t.Duration.AddTo(t.DTStart)
	}
	return DateTime{}
}
