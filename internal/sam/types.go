package sam

import "fmt"

// RawOpportunity is one contract notice exactly as returned by the
// opportunities search API. The schema is owned by SAM.gov and every field
// is optional, so the payload is kept as a decoded JSON object instead of a
// rigid struct.
type RawOpportunity map[string]any

// NoticeID returns the notice identifier, or "" when the field is absent or
// not a string.
func (o RawOpportunity) NoticeID() string {
	id, _ := o["noticeId"].(string)
	return id
}

// searchResponse is the envelope around the opportunity list. A response
// without the opportunitiesData key decodes to an empty list.
type searchResponse struct {
	OpportunitiesData []RawOpportunity `json:"opportunitiesData"`
	TotalRecords      int              `json:"totalRecords"`
}

// APIError is returned when the search API answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sam: API error: %d - %s", e.StatusCode, e.Body)
}
