package calcore

// Journal is a VJOURNAL payload: a dated note with no end, no duration and
// no alarms of consequence.
type Journal struct {
	Incidence
}

// NewJournal returns a journal with the given UID, minting one when uid is
// empty.
func NewJournal(uid string) *Journal {
	return &Journal{Incidence: newIncidence(uid)}
}

func (j *Journal) ObjectBase() *IncidenceBase { return &j.IncidenceBase }

func (j *Journal) Clone() Object {
	c := *j
	c.Incidence = j.cloneIncidence()
	return &c
}
