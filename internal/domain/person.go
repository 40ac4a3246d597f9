package domain

import "time"

// Person column names. These are also the canonical keys used in update
// payloads and pending confirmations.
const (
	PersonFullName        = "full_name"
	PersonEmail           = "email"
	PersonCompany         = "company"
	PersonCategories      = "categories"
	PersonStatus          = "status"
	PersonLinkedIn        = "linkedin_profile"
	PersonInternalContact = "internal_contact"
	PersonWarmIntro       = "warm_intro"
	PersonAgenda          = "agenda"
	PersonMeetingNotes    = "meeting_notes"
	PersonMoreInfo        = "more_info"
	PersonNewsletter      = "newsletter"
	PersonShouldMeet      = "should_meet"
)

// PersonSearchFields are the text columns a people search matches against.
var PersonSearchFields = []string{
	PersonFullName,
	PersonCompany,
	PersonCategories,
	PersonEmail,
	PersonStatus,
	PersonLinkedIn,
	PersonInternalContact,
	PersonWarmIntro,
	PersonAgenda,
	PersonMeetingNotes,
	PersonMoreInfo,
}

// PersonUpdatableFields are the columns update_person may set.
var PersonUpdatableFields = map[string]bool{
	PersonFullName:        true,
	PersonEmail:           true,
	PersonCompany:         true,
	PersonCategories:      true,
	PersonStatus:          true,
	PersonLinkedIn:        true,
	PersonInternalContact: true,
	PersonWarmIntro:       true,
	PersonAgenda:          true,
	PersonMeetingNotes:    true,
	PersonMoreInfo:        true,
	PersonNewsletter:      true,
	PersonShouldMeet:      true,
}

// Person is a contact record. Empty strings are stored as NULL.
type Person struct {
	ID              string    `json:"id,omitempty"`
	FullName        string    `json:"full_name,omitempty"`
	Email           string    `json:"email,omitempty"`
	Company         string    `json:"company,omitempty"`
	Categories      string    `json:"categories,omitempty"`
	Status          string    `json:"status,omitempty"`
	LinkedInProfile string    `json:"linkedin_profile,omitempty"`
	InternalContact string    `json:"internal_contact,omitempty"`
	WarmIntro       string    `json:"warm_intro,omitempty"`
	Agenda          string    `json:"agenda,omitempty"`
	MeetingNotes    string    `json:"meeting_notes,omitempty"`
	MoreInfo        string    `json:"more_info,omitempty"`
	Newsletter      bool      `json:"newsletter,omitempty"`
	ShouldMeet      bool      `json:"should_meet,omitempty"`
	CreatedBy       string    `json:"created_by,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// Field returns the display value of a column by its canonical name.
func (p *Person) Field(name string) string {
	switch name {
	case PersonFullName:
		return p.FullName
	case PersonEmail:
		return p.Email
	case PersonCompany:
		return p.Company
	case PersonCategories:
		return p.Categories
	case PersonStatus:
		return p.Status
	case PersonLinkedIn:
		return p.LinkedInProfile
	case PersonInternalContact:
		return p.InternalContact
	case PersonWarmIntro:
		return p.WarmIntro
	case PersonAgenda:
		return p.Agenda
	case PersonMeetingNotes:
		return p.MeetingNotes
	case PersonMoreInfo:
		return p.MoreInfo
	case PersonNewsletter:
		return boolString(p.Newsletter)
	case PersonShouldMeet:
		return boolString(p.ShouldMeet)
	}
	return ""
}

// SetField assigns a column by its canonical name. It reports false for
// unknown columns.
func (p *Person) SetField(name, value string) bool {
	switch name {
	case PersonFullName:
		p.FullName = value
	case PersonEmail:
		p.Email = value
	case PersonCompany:
		p.Company = value
	case PersonCategories:
		p.Categories = value
	case PersonStatus:
		p.Status = value
	case PersonLinkedIn:
		p.LinkedInProfile = value
	case PersonInternalContact:
		p.InternalContact = value
	case PersonWarmIntro:
		p.WarmIntro = value
	case PersonAgenda:
		p.Agenda = value
	case PersonMeetingNotes:
		p.MeetingNotes = value
	case PersonMoreInfo:
		p.MoreInfo = value
	case PersonNewsletter:
		p.Newsletter = ParseBool(value)
	case PersonShouldMeet:
		p.ShouldMeet = ParseBool(value)
	default:
		return false
	}
	return true
}

// ParseBool accepts the loose truthy spellings a classifier tends to emit.
func ParseBool(v string) bool {
	switch v {
	case "1", "true", "TRUE", "True", "yes", "Yes", "y", "on":
		return true
	}
	return false
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return ""
}
