package ble

import "time"

// DefaultCompanyID is the manufacturer identifier carried by the BBW200-A1
// temperature and humidity sensor family.
const DefaultCompanyID uint16 = 0x000D

// ManufacturerSection is one company-tagged block of vendor data.
type ManufacturerSection struct {
	CompanyID uint16
	Data      []byte
}

// Advertisement is a single received broadcast. It only lives for the
// duration of one delivery; Data slices are copies owned by the receiver.
type Advertisement struct {
	Address   string
	RSSI      int16
	LocalName string
	Sections  []ManufacturerSection
	SeenAt    time.Time
}

// HasCompany reports whether any section carries companyID.
func (a Advertisement) HasCompany(companyID uint16) bool {
	for _, s := range a.Sections {
		if s.CompanyID == companyID {
			return true
		}
	}
	return false
}
