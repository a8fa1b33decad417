package calcore

// Calendar is a store of schedulable objects keyed by UID.  The codec and
// the scheduler work against this interface; MemoryCalendar is the bundled
// implementation.
type Calendar interface {
	// AddIncidence stores o, replacing any object with the same UID.
	AddIncidence(o Object) error
	// DeleteIncidence removes the object with the given UID, reporting
	// whether one existed.
	DeleteIncidence(uid string) bool
	// IncidenceByUID returns the stored object with the given UID, or nil.
	IncidenceByUID(uid string) Object
	// IncidenceBySchedulingID returns the stored object whose effective
	// scheduling id matches, or nil.
	IncidenceBySchedulingID(sid string) Object
	// Incidences returns all stored objects in insertion order.
	Incidences() []Object
	// DefaultTimeSpec is the spec applied to floating times when an
	// absolute reading is needed.
	DefaultTimeSpec() TimeSpec
}

// MemoryCalendar is an in-memory Calendar.  It is not safe for concurrent
// use.
type MemoryCalendar struct {
	spec  TimeSpec
	byUID map[string]Object
	order []string
}

// NewMemoryCalendar returns an empty calendar whose floating times read in
// the given spec.
func NewMemoryCalendar(spec TimeSpec) *MemoryCalendar {
	return &MemoryCalendar{spec: spec, byUID: map[string]Object{}}
}

func (m *MemoryCalendar) AddIncidence(o Object) error {
	uid := o.ObjectBase().UID
	if _, exists := m.byUID[uid]; !exists {
		m.order = append(m.order, uid)
	}
	m.byUID[uid] = o
	return nil
}

func (m *MemoryCalendar) DeleteIncidence(uid string) bool {
	if _, ok := m.byUID[uid]; !ok {
		return false
	}
	delete(m.byUID, uid)
	for i, u := range m.order {
		if u == uid {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *MemoryCalendar) IncidenceByUID(uid string) Object {
	return m.byUID[uid]
}

func (m *MemoryCalendar) IncidenceBySchedulingID(sid string) Object {
	for _, uid := range m.order {
		if o := m.byUID[uid]; o.ObjectBase().SchedulingID() == sid {
			return o
		}
	}
	return nil
}

func (m *MemoryCalendar) Incidences() []Object {
	out := make([]Object, 0, len(m.order))
	for _, uid := range m.order {
		out = append(out, m.byUID[uid])
	}
	return out
}

func (m *MemoryCalendar) DefaultTimeSpec() TimeSpec { return m.spec }

// Events returns the stored events in insertion order.
func (m *MemoryCalendar) Events() []*Event {
	var out []*Event
	for _, o := range m.Incidences() {
		if ev, ok := o.(*Event); ok {
			out = append(out, ev)
		}
	}
	return out
}

// Todos returns the stored to-dos in insertion order.
func (m *MemoryCalendar) Todos() []*Todo {
	var out []*Todo
	for _, o := range m.Incidences() {
		if td, ok := o.(*Todo); ok {
			out = append(out, td)
		}
	}
	return out
}

// Journals returns the stored journals in insertion order.
func (m *MemoryCalendar) Journals() []*Journal {
	var out []*Journal
	for _, o := range m.Incidences() {
		if j, ok := o.(*Journal); ok {
			out = append(out, j)
		}
	}
	return out
}
