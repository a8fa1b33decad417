package calcore

import (
	"time"

	"github.com/google/uuid"
)

// IncidenceStatus enumerates the STATUS property values for events, to-dos
// and journals (RFC 5545 section 3.8.1.11), plus StatusX for values the
// enumeration does not cover.
type IncidenceStatus string

const (
	StatusNone        IncidenceStatus = ""
	StatusTentative   IncidenceStatus = "TENTATIVE"
	StatusConfirmed   IncidenceStatus = "CONFIRMED"
	StatusCompleted   IncidenceStatus = "COMPLETED"
	StatusNeedsAction IncidenceStatus = "NEEDS-ACTION"
	StatusCanceled    IncidenceStatus = "CANCELLED"
	StatusInProcess   IncidenceStatus = "IN-PROCESS"
	StatusDraft       IncidenceStatus = "DRAFT"
	StatusFinal       IncidenceStatus = "FINAL"
	// StatusX marks a non-standard status; the raw text lives in
	// Incidence.StatusText.
	StatusX IncidenceStatus = "X-STATUS"
)

// Secrecy enumerates the CLASS property values (RFC 5545 section 3.8.1.3).
type Secrecy string

const (
	SecrecyPublic       Secrecy = "PUBLIC"
	SecrecyPrivate      Secrecy = "PRIVATE"
	SecrecyConfidential Secrecy = "CONFIDENTIAL"
)

// CustomProperty is a vendor extension property preserved round-trip.
// Params holds the raw parameter text exactly as read, including the
// leading semicolon, so unknown parameters survive re-serialization.
type CustomProperty struct {
	Value  string
	Params string
}

// NewUID mints a fresh globally-unique incidence identifier.
func NewUID() string {
	return uuid.New().String() + "@calcore"
}

// IncidenceBase carries the fields shared by all schedulable payloads,
// including FreeBusy.
type IncidenceBase struct {
	UID string
	// schedulingID is the identifier used in iTIP exchanges when it diverges
	// from UID.  Empty means the UID doubles as the scheduling id; use
	// SchedulingID for the effective value.
	schedulingID string

	DTStart      DateTime
	AllDay       bool
	LastModified time.Time

	Organizer Person
	Attendees []*Attendee

	Duration    Duration
	HasDuration bool

	Comments []string
	Contacts []string
	URL      string

	// Custom holds vendor extension properties keyed by property name.
	Custom map[string]CustomProperty

	ReadOnly bool
}

// SchedulingID returns the identifier used for iTIP exchanges.  When no
// distinct scheduling id has been assigned it equals the UID.
func (b *IncidenceBase) SchedulingID() string {
	if b.schedulingID == "" {
		return b.UID
	}
	return b.schedulingID
}

// SetSchedulingID assigns a scheduling id distinct from the UID.  Passing
// the empty string reverts to the UID.
func (b *IncidenceBase) SetSchedulingID(id string) {
	if id == b.UID {
		id = ""
	}
	b.schedulingID = id
}

// SetCustomProperty stores a vendor extension property.  An empty value
// removes the property.
func (b *IncidenceBase) SetCustomProperty(name, value string) {
	if value == "" {
		delete(b.Custom, name)
		return
	}
	if b.Custom == nil {
		b.Custom = map[string]CustomProperty{}
	}
	b.Custom[name] = CustomProperty{Value: value}
}

// CustomPropertyValue returns the value of a vendor extension property, or
// the empty string.
func (b *IncidenceBase) CustomPropertyValue(name string) string {
	return b.Custom[name].Value
}

// AttendeeByEmail returns the attendee with the given email, matched
// case-insensitively.
func (b *IncidenceBase) AttendeeByEmail(email string) *Attendee {
	for _, a := range b.Attendees {
		if a.EmailEquals(email) {
			return a
		}
	}
	return nil
}

// Updated records a modification timestamp.  It does not bump the revision;
// revision changes mark semantic edits and are the caller's decision.
func (b *IncidenceBase) Updated() {
	b.LastModified = time.Now().UTC().Truncate(time.Second)
}

func (b *IncidenceBase) cloneBase() IncidenceBase {
	c := *b
	c.Attendees = nil
	for _, a := range b.Attendees {
		c.Attendees = append(c.Attendees, a.Clone())
	}
	c.Comments = append([]string(nil), b.Comments...)
	c.Contacts = append([]string(nil), b.Contacts...)
	if b.Custom != nil {
		c.Custom = make(map[string]CustomProperty, len(b.Custom))
		for k, v := range b.Custom {
			c.Custom[k] = v
		}
	}
	return c
}

// Incidence carries the fields shared by Event, Todo and Journal on top of
// IncidenceBase.
type Incidence struct {
	IncidenceBase

	Created  time.Time
	Revision int

	Summary           string
	SummaryIsRich     bool
	Description       string
	DescriptionIsRich bool
	Location          string
	LocationIsRich    bool

	Categories []string
	Status     IncidenceStatus
	StatusText string
	Secrecy    Secrecy
	// Priority 0 means undefined; 1 is highest, 9 lowest.
	Priority int

	RelatedToUID string

	// RecurrenceID marks this incidence as an exception override of a
	// recurring parent.
	RecurrenceID  DateTime
	ThisAndFuture bool

	Recurrence *Recurrence

	Attachments []*Attachment
	Alarms      []*Alarm
}

func newIncidence(uid string) Incidence {
	if uid == "" {
		uid = NewUID()
	}
	return Incidence{
		IncidenceBase: IncidenceBase{UID: uid},
		Secrecy:       SecrecyPrivate,
	}
}

// SetRevision raises the revision to rev.  Revisions never decrease.
func (i *Incidence) SetRevision(rev int) error {
	if i.ReadOnly {
		return ErrReadOnly
	}
	if rev < i.Revision {
		return ErrRevisionDecrease
	}
	i.Revision = rev
	return nil
}

// BumpRevision marks a semantic change by incrementing the sequence number
// and refreshing the modification timestamp.
func (i *Incidence) BumpRevision() {
	i.Revision++
	i.Updated()
}

// HasRecurrenceID reports whether this incidence is an exception override.
func (i *Incidence) HasRecurrenceID() bool {
	return !i.RecurrenceID.IsZero()
}

// Recurs reports whether the incidence carries any recurrence rules or
// extra dates.
func (i *Incidence) Recurs() bool {
	return i.Recurrence != nil && !i.Recurrence.IsEmpty()
}

// AddCategory appends a category, suppressing duplicates.
func (i *Incidence) AddCategory(c string) {
	for _, have := range i.Categories {
		if have == c {
			return
		}
	}
	i.Categories = append(i.Categories, c)
}

// SetCategories replaces the category list, suppressing duplicates while
// preserving first-seen order.
func (i *Incidence) SetCategories(cats []string) {
	i.Categories = nil
	for _, c := range cats {
		i.AddCategory(c)
	}
}

// Recreate gives the incidence a brand-new identity: fresh UID, cleared
// scheduling id, revision zero and a new creation timestamp.
func (i *Incidence) Recreate() {
	now := time.Now().UTC().Truncate(time.Second)
	i.UID = NewUID()
	i.schedulingID = ""
	i.Revision = 0
	i.Created = now
	i.LastModified = now
}

func (i *Incidence) cloneIncidence() Incidence {
	c := *i
	c.IncidenceBase = i.cloneBase()
	c.Categories = append([]string(nil), i.Categories...)
	if i.Recurrence != nil {
		c.Recurrence = i.Recurrence.Clone()
	}
	c.Attachments = nil
	for _, a := range i.Attachments {
		c.Attachments = append(c.Attachments, a.Clone())
	}
	c.Alarms = nil
	for _, a := range i.Alarms {
		c.Alarms = append(c.Alarms, a.Clone())
	}
	return c
}

// Object is the sum of the schedulable payload kinds: *Event, *Todo,
// *Journal and *FreeBusy.  Branch on the concrete kind with a type switch;
// the codec and the scheduler do so exhaustively.
type Object interface {
	ObjectBase() *IncidenceBase
	// Clone returns a deep copy sharing no mutable state with the original.
	Clone() Object
}

var (
	_ Object = (*Event)(nil)
	_ Object = (*Todo)(nil)
	_ Object = (*Journal)(nil)
	_ Object = (*FreeBusy)(nil)
)

// IncidenceOf returns the shared incidence fields of o, or nil when o is a
// *FreeBusy (which has no descriptive or recurrence fields).
func IncidenceOf(o Object) *Incidence {
	switch o := o.(type) {
	case *Event:
		return &o.Incidence
	case *Todo:
		return &o.Incidence
	case *Journal:
		return &o.Incidence
	case *FreeBusy:
		return nil
	}
	return nil
}
