package ble

// Filter selects advertisements from the target device class.
//
// Only the first manufacturer section is consulted. The sensor sends a single
// section per broadcast, so later sections are never merged or searched.
type Filter struct {
	CompanyID uint16
}

// NewFilter returns a filter for companyID, or DefaultCompanyID when zero.
func NewFilter(companyID uint16) Filter {
	if companyID == 0 {
		companyID = DefaultCompanyID
	}
	return Filter{CompanyID: companyID}
}

// Matches reports whether adv comes from the target manufacturer.
func (f Filter) Matches(adv Advertisement) bool {
	_, ok := f.FirstMatchingPayload(adv)
	return ok
}

// FirstMatchingPayload returns the payload of the first section when that
// section belongs to the target manufacturer. Missing sections and empty
// payloads are a normal "nothing to report", not an error.
func (f Filter) FirstMatchingPayload(adv Advertisement) ([]byte, bool) {
	if len(adv.Sections) == 0 {
		return nil, false
	}
	first := adv.Sections[0]
	if first.CompanyID != f.CompanyID || len(first.Data) == 0 {
		return nil, false
	}
	return first.Data, true
}
