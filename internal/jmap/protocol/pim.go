package protocol

// AddressBook is a JMAP for Contacts address book.
type AddressBook struct {
	Id           Id              `json:"id,omitempty"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	SortOrder    uint32          `json:"sortOrder,omitempty"`
	IsDefault    bool            `json:"isDefault,omitempty"`
	IsSubscribed bool            `json:"isSubscribed,omitempty"`
	MyRights     map[string]bool `json:"myRights,omitempty"`
}

// ContactCard is the subset of a JSContact Card (RFC 9553) the client reads
// and writes.
type ContactCard struct {
	Type           string                         `json:"@type,omitempty"`
	Version        string                         `json:"version,omitempty"`
	Id             Id                             `json:"id,omitempty"`
	Uid            string                         `json:"uid,omitempty"`
	Kind           string                         `json:"kind,omitempty"`
	AddressBookIds map[Id]bool                    `json:"addressBookIds,omitempty"`
	Name           *ContactName                   `json:"name,omitempty"`
	Emails         map[string]ContactEmail        `json:"emails,omitempty"`
	Phones         map[string]ContactPhone        `json:"phones,omitempty"`
	Organizations  map[string]ContactOrganization `json:"organizations,omitempty"`
	Notes          map[string]ContactNote         `json:"notes,omitempty"`
	Updated        string                         `json:"updated,omitempty"`
}

// DisplayName returns the full name, or the first email address.
func (c *ContactCard) DisplayName() string {
	if c.Name != nil && c.Name.Full != "" {
		return c.Name.Full
	}
	for _, e := range c.Emails {
		return e.Address
	}
	return ""
}

type ContactName struct {
	Full       string             `json:"full,omitempty"`
	Components []ContactComponent `json:"components,omitempty"`
}

type ContactComponent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type ContactEmail struct {
	Address  string          `json:"address"`
	Contexts map[string]bool `json:"contexts,omitempty"`
	Pref     int             `json:"pref,omitempty"`
}

type ContactPhone struct {
	Number   string          `json:"number"`
	Features map[string]bool `json:"features,omitempty"`
}

type ContactOrganization struct {
	Name string `json:"name"`
}

type ContactNote struct {
	Note string `json:"note"`
}

// Calendar is a JMAP for Calendars calendar.
type Calendar struct {
	Id           Id      `json:"id,omitempty"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	Color        *string `json:"color,omitempty"`
	SortOrder    uint32  `json:"sortOrder,omitempty"`
	IsSubscribed bool    `json:"isSubscribed,omitempty"`
	IsVisible    bool    `json:"isVisible,omitempty"`
	IsDefault    bool    `json:"isDefault,omitempty"`
}

// CalendarEvent is the subset of a JSCalendar Event (RFC 8984) the client
// reads and writes. Recurrence is passed through untouched.
type CalendarEvent struct {
	Type            string                 `json:"@type,omitempty"`
	Id              Id                     `json:"id,omitempty"`
	CalendarIds     map[Id]bool            `json:"calendarIds,omitempty"`
	Uid             string                 `json:"uid,omitempty"`
	Title           string                 `json:"title,omitempty"`
	Description     string                 `json:"description,omitempty"`
	Start           string                 `json:"start,omitempty"`
	TimeZone        *string                `json:"timeZone,omitempty"`
	Duration        string                 `json:"duration,omitempty"`
	ShowWithoutTime bool                   `json:"showWithoutTime,omitempty"`
	Status          string                 `json:"status,omitempty"`
	Locations       map[string]Location    `json:"locations,omitempty"`
	Participants    map[string]Participant `json:"participants,omitempty"`
	RecurrenceRules []map[string]any       `json:"recurrenceRules,omitempty"`
}

type Location struct {
	Name string `json:"name"`
}

type Participant struct {
	Name                string          `json:"name,omitempty"`
	Email               string          `json:"email,omitempty"`
	Roles               map[string]bool `json:"roles,omitempty"`
	ParticipationStatus string          `json:"participationStatus,omitempty"`
}

// SieveScript is a server-side filter script (RFC 9661).
type SieveScript struct {
	Id       Id      `json:"id,omitempty"`
	Name     *string `json:"name"`
	BlobId   Id      `json:"blobId"`
	IsActive bool    `json:"isActive"`
}

// SieveValidateResponse is the result of SieveScript/validate.
type SieveValidateResponse struct {
	AccountId Id        `json:"accountId"`
	Error     *SetError `json:"error"`
}
