package calcore

import (
	"strings"
)

// Person is a calendar user: a display name and an email address.
type Person struct {
	Name  string
	Email string
}

func (p Person) IsEmpty() bool {
	return p.Name == "" && p.Email == ""
}

// FullName renders the person as "Name <email>", degrading gracefully when
// either part is missing.
func (p Person) FullName() string {
	switch {
	case p.Name == "":
		return p.Email
	case p.Email == "":
		return p.Name
	default:
		return p.Name + " <" + p.Email + ">"
	}
}

// ParseCalAddress splits a CAL-ADDRESS value such as "mailto:a@example.com"
// with an optional CN parameter already extracted by the caller.
func ParseCalAddress(value, cn string) Person {
	return Person{Name: cn, Email: strings.TrimPrefix(value, "mailto:")}
}

// CalAddress renders the email as a CAL-ADDRESS value.
func (p Person) CalAddress() string {
	if p.Email == "" {
		return ""
	}
	if strings.HasPrefix(p.Email, "mailto:") {
		return p.Email
	}
	return "mailto:" + p.Email
}

type ParticipationStatus string

// ParticipationStatus enumerates the PARTSTAT parameter values from RFC 5545
// section 3.2.12.
const (
	ParticipationNeedsAction ParticipationStatus = "NEEDS-ACTION"
	ParticipationAccepted    ParticipationStatus = "ACCEPTED"
	ParticipationDeclined    ParticipationStatus = "DECLINED"
	ParticipationTentative   ParticipationStatus = "TENTATIVE"
	ParticipationDelegated   ParticipationStatus = "DELEGATED"
	ParticipationCompleted   ParticipationStatus = "COMPLETED"
	ParticipationInProcess   ParticipationStatus = "IN-PROCESS"
)

type ParticipationRole string

// ParticipationRole enumerates the ROLE parameter values from RFC 5545
// section 3.2.16.
const (
	RoleChair          ParticipationRole = "CHAIR"
	RoleReqParticipant ParticipationRole = "REQ-PARTICIPANT"
	RoleOptParticipant ParticipationRole = "OPT-PARTICIPANT"
	RoleNonParticipant ParticipationRole = "NON-PARTICIPANT"
)

type CalendarUserType string

// CalendarUserType enumerates the CUTYPE parameter values from RFC 5545
// section 3.2.3.
const (
	UserTypeIndividual CalendarUserType = "INDIVIDUAL"
	UserTypeGroup      CalendarUserType = "GROUP"
	UserTypeResource   CalendarUserType = "RESOURCE"
	UserTypeRoom       CalendarUserType = "ROOM"
	UserTypeUnknown    CalendarUserType = "UNKNOWN"
)

// Attendee is a participant attached to an incidence or free/busy record.
type Attendee struct {
	Person
	// UID is an opaque identifier some producers attach to attendees; it is
	// round-tripped but not interpreted.
	UID    string
	RSVP   bool
	Status ParticipationStatus
	Role   ParticipationRole
	Type   CalendarUserType
	// Delegate is the email of the user this attendee delegated to, Delegator
	// the email of the user who delegated to this attendee.
	Delegate  string
	Delegator string
}

// NewAttendee returns an attendee with the protocol defaults filled in.
func NewAttendee(name, email string) *Attendee {
	return &Attendee{
		Person: Person{Name: name, Email: email},
		Status: ParticipationNeedsAction,
		Role:   RoleReqParticipant,
		Type:   UserTypeIndividual,
	}
}

// Clone returns a copy of the attendee.
func (a *Attendee) Clone() *Attendee {
	c := *a
	return &c
}

// EmailEquals compares attendee emails case-insensitively, the comparison
// the iTIP reply merge uses.
func (a *Attendee) EmailEquals(email string) bool {
	return strings.EqualFold(a.Email, email)
}
