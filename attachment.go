package calcore

// Attachment is either an inline binary payload or a URI reference attached
// to an incidence or alarm.
type Attachment struct {
	// URI is set for reference attachments.
	URI string
	// Data holds the decoded payload for inline binary attachments.
	Data     []byte
	MimeType string
	Binary   bool
	// ShowInline asks clients to render the attachment in place rather than
	// as a link.
	ShowInline bool
	// Local marks an attachment whose URI points at a local file.
	Local bool
	// Label is a display name for the attachment.
	Label string
}

// NewURIAttachment returns a reference attachment.
func NewURIAttachment(uri, mimeType string) *Attachment {
	return &Attachment{URI: uri, MimeType: mimeType}
}

// NewBinaryAttachment returns an inline attachment owning data.
func NewBinaryAttachment(data []byte, mimeType string) *Attachment {
	return &Attachment{Data: data, MimeType: mimeType, Binary: true}
}

// Clone returns a copy of the attachment with its own payload slice.
func (a *Attachment) Clone() *Attachment {
	c := *a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return &c
}
