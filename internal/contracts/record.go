// Package contracts implements the fetch-and-normalize pipeline core: the
// multi-organization fetcher, the record normalizer, and output naming.
package contracts

// DateLayout is the calendar-date format the search API expects.
const DateLayout = "01/02/2006"

// Record is the flat, normalized form of one contract notice. Every field is
// always present as a string so downstream sinks see a uniform shape;
// missing source data maps to "".
type Record struct {
	NoticeID           string `json:"notice_id"`
	Title              string `json:"title"`
	SolicitationNumber string `json:"solicitation_number"`
	PostedDate         string `json:"posted_date"`
	ResponseDeadline   string `json:"response_deadline"`
	Type               string `json:"type"`
	NAICSCode          string `json:"naics_code"`
	Active             string `json:"active"`
	Organization       string `json:"organization"`
	OfficeCity         string `json:"office_city"`
	OfficeState        string `json:"office_state"`
	OfficeZip          string `json:"office_zip"`
	ContactEmail       string `json:"contact_email"`
	ContactPhone       string `json:"contact_phone"`
	ContactName        string `json:"contact_name"`
	UILink             string `json:"ui_link"`
	SetAside           string `json:"set_aside"`
}

// DateRange is a closed calendar-date interval in MM/DD/YYYY form.
type DateRange struct {
	PostedFrom string
	PostedTo   string
}

// SingleDay reports whether both bounds name the same calendar day.
func (r DateRange) SingleDay() bool {
	return r.PostedFrom == r.PostedTo
}
