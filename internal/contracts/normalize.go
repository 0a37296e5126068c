package contracts

import (
	"strconv"

	"github.com/contractwatch/contract-fetcher/internal/sam"
)

// Normalize maps one raw notice to a flat Record. It is total over arbitrary
// JSON-shaped input: a field that is absent, null, or of an unexpected shape
// contributes "". Scalars that arrive as booleans or numbers are stringified
// as-is.
func Normalize(raw sam.RawOpportunity) Record {
	office := objectField(raw, "officeAddress")
	contact := firstContact(raw)

	return Record{
		NoticeID:           stringField(raw, "noticeId"),
		Title:              stringField(raw, "title"),
		SolicitationNumber: stringField(raw, "solicitationNumber"),
		PostedDate:         stringField(raw, "postedDate"),
		// The API spells the deadline field with a capital L.
		ResponseDeadline: stringField(raw, "responseDeadLine"),
		Type:             stringField(raw, "type"),
		NAICSCode:        stringField(raw, "naicsCode"),
		Active:           stringField(raw, "active"),
		Organization:     stringField(raw, "fullParentPathName"),
		OfficeCity:       stringField(office, "city"),
		OfficeState:      stringField(office, "state"),
		OfficeZip:        stringField(office, "zipcode"),
		ContactEmail:     stringField(contact, "email"),
		ContactPhone:     stringField(contact, "phone"),
		ContactName:      stringField(contact, "fullName"),
		UILink:           stringField(raw, "uiLink"),
		SetAside:         stringField(raw, "typeOfSetAsideDescription"),
	}
}

// NormalizeAll maps a notice sequence in order, one Record per notice.
func NormalizeAll(raw []sam.RawOpportunity) []Record {
	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		records = append(records, Normalize(item))
	}
	return records
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	return stringify(m[key])
}

// stringify renders a scalar JSON value as a string without reformatting.
// Nested objects and arrays do not belong in scalar fields and map to "".
func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func objectField(m map[string]any, key string) map[string]any {
	obj, _ := m[key].(map[string]any)
	return obj
}

// firstContact returns the first entry of pointOfContact; later entries are
// ignored. Anything that is not a list of objects counts as absent.
func firstContact(raw sam.RawOpportunity) map[string]any {
	list, ok := raw["pointOfContact"].([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	contact, _ := list[0].(map[string]any)
	return contact
}
