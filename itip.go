package calcore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Method enumerates the iTIP methods (RFC 5546 section 1.4).
type Method string

const (
	MethodNone           Method = ""
	MethodPublish        Method = "PUBLISH"
	MethodRequest        Method = "REQUEST"
	MethodReply          Method = "REPLY"
	MethodAdd            Method = "ADD"
	MethodCancel         Method = "CANCEL"
	MethodRefresh        Method = "REFRESH"
	MethodCounter        Method = "COUNTER"
	MethodDeclineCounter Method = "DECLINECOUNTER"
)

// ScheduleStatus classifies an incoming message relative to the local
// calendar before any mutation happens.
type ScheduleStatus int

const (
	ScheduleUnknown ScheduleStatus = iota
	// SchedulePublishNew is a publication of an incidence not seen before.
	SchedulePublishNew
	// SchedulePublishUpdate is a publication superseding a stored revision.
	SchedulePublishUpdate
	// ScheduleObsolete is a message older than the stored revision.
	ScheduleObsolete
	// ScheduleRequestNew is an invitation to a new incidence.
	ScheduleRequestNew
	// ScheduleRequestUpdate is an invitation superseding a stored revision.
	ScheduleRequestUpdate
)

func (s ScheduleStatus) String() string {
	switch s {
	case SchedulePublishNew:
		return "publish new"
	case SchedulePublishUpdate:
		return "publish update"
	case ScheduleObsolete:
		return "obsolete"
	case ScheduleRequestNew:
		return "request new"
	case ScheduleRequestUpdate:
		return "request update"
	}
	return "unknown"
}

// ScheduleMessage is one iTIP transaction: a payload plus the method it
// travels under.
type ScheduleMessage struct {
	Payload Object
	Method  Method
	Status  ScheduleStatus
}

// FreeBusyCache stores free/busy reports received for calendar users.
type FreeBusyCache interface {
	Save(fb *FreeBusy, from Person) error
	Load(email string) (*FreeBusy, error)
}

// Transport delivers outgoing scheduling messages to attendees.  A nil
// transport suppresses notifications without failing the transaction.
type Transport interface {
	Deliver(msg *ScheduleMessage, to []*Attendee) error
}

// UninvitedAttendeePolicy decides whether an attendee who replied without
// having been invited is accepted into the incidence.
type UninvitedAttendeePolicy func(inc *Incidence, a *Attendee) bool

// AcceptAllUninvited admits every uninvited reply.
func AcceptAllUninvited(*Incidence, *Attendee) bool { return true }

// RejectAllUninvited turns every uninvited reply away.
func RejectAllUninvited(*Incidence, *Attendee) bool { return false }

// Scheduler applies iTIP transactions to a calendar.
type Scheduler struct {
	cal       Calendar
	cache     FreeBusyCache
	transport Transport
	policy    UninvitedAttendeePolicy
	log       logrus.FieldLogger
}

// NewScheduler wires a scheduler to a calendar.  The policy is mandatory
// since silently admitting or rejecting uninvited attendees are both
// surprising defaults; cache and transport may be nil.
func NewScheduler(cal Calendar, cache FreeBusyCache, transport Transport, policy UninvitedAttendeePolicy) (*Scheduler, error) {
	if cal == nil {
		return nil, errors.New("scheduler needs a calendar")
	}
	if policy == nil {
		return nil, errors.New("scheduler needs an uninvited attendee policy")
	}
	return &Scheduler{
		cal:       cal,
		cache:     cache,
		transport: transport,
		policy:    policy,
		log:       logrus.StandardLogger(),
	}, nil
}

// ParseMessage decodes one iTIP message.  The stream must declare a METHOD
// and carry exactly one payload.
func (s *Scheduler) ParseMessage(data []byte) (*ScheduleMessage, error) {
	scratch := NewMemoryCalendar(s.cal.DefaultTimeSpec())
	dec := &Decoder{Log: s.log}
	res, err := dec.Decode(data, scratch)
	if err != nil {
		return nil, err
	}
	if res.Method == MethodNone {
		return nil, fmt.Errorf("scheduling message lacks METHOD: %w", ErrMalformedInput)
	}
	objs := scratch.Incidences()
	if len(objs) != 1 {
		return nil, fmt.Errorf("scheduling message carries %d payloads, want 1: %w", len(objs), ErrMalformedInput)
	}
	msg := &ScheduleMessage{Payload: objs[0], Method: res.Method}
	msg.Status = s.Classify(msg)
	return msg, nil
}

// Classify determines how the message relates to the stored state without
// mutating anything.
func (s *Scheduler) Classify(msg *ScheduleMessage) ScheduleStatus {
	inc := IncidenceOf(msg.Payload)
	switch msg.Method {
	case MethodPublish:
		existing := s.cal.IncidenceByUID(msg.Payload.ObjectBase().UID)
		if existing == nil {
			return SchedulePublishNew
		}
		if inc != nil && !supersedes(msg.Payload, existing) {
			return ScheduleObsolete
		}
		return SchedulePublishUpdate
	case MethodRequest:
		existing := s.cal.IncidenceBySchedulingID(msg.Payload.ObjectBase().SchedulingID())
		if existing == nil {
			return ScheduleRequestNew
		}
		if inc != nil && !supersedes(msg.Payload, existing) {
			return ScheduleObsolete
		}
		return ScheduleRequestUpdate
	}
	return ScheduleUnknown
}

// AcceptTransaction applies the message to the calendar.  It reports
// whether the calendar changed; a stale or unsupported message is consumed
// without error.  At most one stored object is mutated per call.
func (s *Scheduler) AcceptTransaction(msg *ScheduleMessage) (bool, error) {
	switch msg.Method {
	case MethodPublish:
		return s.acceptPublish(msg)
	case MethodRequest:
		return s.acceptRequest(msg)
	case MethodReply:
		return s.acceptReply(msg)
	case MethodCancel:
		return s.acceptCancel(msg)
	case MethodAdd, MethodRefresh, MethodCounter, MethodDeclineCounter:
		// Consumed but not acted on; senders fall back to a full REQUEST.
		s.log.WithField("method", msg.Method).Info("ignoring unsupported scheduling method")
		return false, nil
	}
	return false, fmt.Errorf("cannot accept scheduling method %q", msg.Method)
}

func (s *Scheduler) acceptPublish(msg *ScheduleMessage) (bool, error) {
	if fb, ok := msg.Payload.(*FreeBusy); ok {
		return s.saveFreeBusy(fb, fb.Organizer)
	}
	existing := s.cal.IncidenceByUID(msg.Payload.ObjectBase().UID)
	if existing != nil && !supersedes(msg.Payload, existing) {
		return false, nil
	}
	if err := s.cal.AddIncidence(msg.Payload); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Scheduler) acceptRequest(msg *ScheduleMessage) (bool, error) {
	inc := IncidenceOf(msg.Payload)
	if inc == nil {
		// A free/busy request asks for a report, not a calendar change;
		// answering it is the caller's business.
		s.log.Info("ignoring free/busy request; no local action")
		return false, nil
	}
	sid := inc.SchedulingID()
	existing := s.cal.IncidenceBySchedulingID(sid)
	if existing != nil {
		if !supersedes(msg.Payload, existing) {
			return false, nil
		}
		// Keep the local identity across updates; the organizer only knows
		// the scheduling id.
		inc.UID = existing.ObjectBase().UID
		inc.SetSchedulingID(sid)
		if err := s.cal.AddIncidence(msg.Payload); err != nil {
			return false, err
		}
		return true, nil
	}
	// A fresh invitation gets a local identity distinct from the
	// organizer's uid, so a later locally created copy cannot collide.
	inc.UID = NewUID()
	inc.SetSchedulingID(sid)
	if err := s.cal.AddIncidence(msg.Payload); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Scheduler) acceptReply(msg *ScheduleMessage) (bool, error) {
	if fb, ok := msg.Payload.(*FreeBusy); ok {
		// A reply to a free/busy request names the requester as ORGANIZER;
		// the report describes the replying attendee.
		var from Person
		if len(fb.Attendees) == 1 {
			from = fb.Attendees[0].Person
		}
		return s.saveFreeBusy(fb, from)
	}
	payload := IncidenceOf(msg.Payload)
	uid := payload.UID
	local := s.cal.IncidenceByUID(uid)
	if local == nil {
		local = s.cal.IncidenceBySchedulingID(uid)
	}
	if local == nil {
		return false, fmt.Errorf("REPLY for unknown incidence %s", uid)
	}
	localInc := IncidenceOf(local)
	if localInc == nil {
		return false, fmt.Errorf("REPLY targets a free/busy object")
	}

	changed := false
	attendeeAdded := false
	for _, ra := range payload.Attendees {
		la := localInc.AttendeeByEmail(ra.Email)
		if la != nil {
			if la.Status != ra.Status || la.Delegate != ra.Delegate || la.Delegator != ra.Delegator {
				la.Status = ra.Status
				la.Delegate = ra.Delegate
				la.Delegator = ra.Delegator
				changed = true
			}
			continue
		}
		if ra.Status == ParticipationDeclined {
			continue
		}
		if s.policy(localInc, ra) {
			localInc.Attendees = append(localInc.Attendees, ra.Clone())
			changed = true
			attendeeAdded = true
			continue
		}
		s.declineUninvited(local, localInc, ra)
		changed = true
	}

	// A reply to a to-do may carry progress from the attendee's side.
	if lt, ok := local.(*Todo); ok {
		if rt, ok := msg.Payload.(*Todo); ok {
			if rt.PercentComplete != lt.PercentComplete {
				lt.PercentComplete = rt.PercentComplete
				if rt.IsCompleted() {
					lt.SetCompleted(rt.Completed)
				}
				changed = true
			}
		}
	}

	if !changed {
		return false, nil
	}
	if attendeeAdded {
		localInc.BumpRevision()
		s.deliver(MethodRequest, local, localInc.Attendees)
	} else {
		localInc.Updated()
	}
	return true, nil
}

// declineUninvited tells a rejected uninvited attendee their participation
// was not accepted, and records the rejection.
func (s *Scheduler) declineUninvited(local Object, localInc *Incidence, a *Attendee) {
	localInc.Comments = append(localInc.Comments,
		fmt.Sprintf("rejected uninvited attendee %s", a.Email))
	if s.transport == nil {
		return
	}
	notice := local.Clone()
	ni := IncidenceOf(notice)
	ni.Attendees = []*Attendee{a.Clone()}
	cancel := &ScheduleMessage{Payload: notice, Method: MethodCancel}
	if err := s.transport.Deliver(cancel, ni.Attendees); err != nil {
		s.log.WithError(err).Warn("delivering uninvited attendee rejection")
	}
}

func (s *Scheduler) acceptCancel(msg *ScheduleMessage) (bool, error) {
	sid := msg.Payload.ObjectBase().SchedulingID()
	existing := s.cal.IncidenceBySchedulingID(sid)
	if existing == nil {
		return false, nil
	}
	return s.cal.DeleteIncidence(existing.ObjectBase().UID), nil
}

func (s *Scheduler) saveFreeBusy(fb *FreeBusy, from Person) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	if from.IsEmpty() && len(fb.Attendees) == 1 {
		from = fb.Attendees[0].Person
	}
	if from.Email == "" {
		return false, fmt.Errorf("free/busy report names no calendar user")
	}
	if err := s.cache.Save(fb, from); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Scheduler) deliver(method Method, payload Object, to []*Attendee) {
	if s.transport == nil || len(to) == 0 {
		return
	}
	msg := &ScheduleMessage{Payload: payload.Clone(), Method: method}
	if err := s.transport.Deliver(msg, to); err != nil {
		s.log.WithError(err).WithField("method", method).Warn("delivering scheduling message")
	}
}

// Publish builds an outgoing PUBLISH message for an incidence and hands it
// to the transport.
func (s *Scheduler) Publish(o Object, to []*Attendee) error {
	if s.transport == nil {
		return errors.New("no transport configured")
	}
	msg := &ScheduleMessage{Payload: o.Clone(), Method: MethodPublish}
	return s.transport.Deliver(msg, to)
}

// Send builds an outgoing message of the given method addressed to the
// incidence's attendees.
func (s *Scheduler) Send(o Object, method Method) error {
	if s.transport == nil {
		return errors.New("no transport configured")
	}
	base := o.ObjectBase()
	msg := &ScheduleMessage{Payload: o.Clone(), Method: method}
	return s.transport.Deliver(msg, base.Attendees)
}

// MailTransport formats messages for delivery by mail, delegating the
// actual sending.
type MailTransport struct {
	Encoder *Encoder
	// SendFunc posts one rendered message to the given addresses.
	SendFunc func(to []string, subject string, body []byte) error
}

func (t *MailTransport) Deliver(msg *ScheduleMessage, to []*Attendee) error {
	enc := t.Encoder
	if enc == nil {
		enc = &Encoder{}
	}
	body, err := enc.EncodeObjects(msg.Method, msg.Payload)
	if err != nil {
		return err
	}
	addrs := make([]string, 0, len(to))
	for _, a := range to {
		if a.Email != "" {
			addrs = append(addrs, a.Email)
		}
	}
	if len(addrs) == 0 {
		return nil
	}
	subject := strings.ToLower(string(msg.Method))
	if inc := IncidenceOf(msg.Payload); inc != nil && inc.Summary != "" {
		subject += ": " + inc.Summary
	}
	return t.SendFunc(addrs, subject, body)
}
