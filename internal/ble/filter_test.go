package ble

import "testing"

func TestNewFilter_DefaultsCompanyID(t *testing.T) {
	if got := NewFilter(0).CompanyID; got != DefaultCompanyID {
		t.Errorf("CompanyID = %#x, want %#x", got, DefaultCompanyID)
	}
	if got := NewFilter(0x1234).CompanyID; got != 0x1234 {
		t.Errorf("CompanyID = %#x, want 0x1234", got)
	}
}

func TestFilter_Matches(t *testing.T) {
	payload := []byte{1, 2, 3}
	other := []byte{9, 9}

	tests := []struct {
		name     string
		sections []ManufacturerSection
		want     bool
		wantData []byte
	}{
		{name: "no sections", sections: nil, want: false},
		{
			name:     "single matching section",
			sections: []ManufacturerSection{{CompanyID: 13, Data: payload}},
			want:     true,
			wantData: payload,
		},
		{
			name: "all foreign sections",
			sections: []ManufacturerSection{
				{CompanyID: 0x004C, Data: other},
				{CompanyID: 0x0059, Data: other},
			},
			want: false,
		},
		{
			name: "first matches, others ignored",
			sections: []ManufacturerSection{
				{CompanyID: 13, Data: payload},
				{CompanyID: 0x004C, Data: other},
				{CompanyID: 13, Data: other},
			},
			want:     true,
			wantData: payload,
		},
		{
			name: "only later section matches",
			sections: []ManufacturerSection{
				{CompanyID: 0x004C, Data: other},
				{CompanyID: 13, Data: payload},
			},
			want: false,
		},
		{
			name:     "first section unreadable",
			sections: []ManufacturerSection{{CompanyID: 13, Data: nil}},
			want:     false,
		},
	}

	f := NewFilter(DefaultCompanyID)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := Advertisement{Sections: tt.sections}
			if got := f.Matches(adv); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
			data, ok := f.FirstMatchingPayload(adv)
			if ok != tt.want {
				t.Fatalf("FirstMatchingPayload() ok = %v, want %v", ok, tt.want)
			}
			if string(data) != string(tt.wantData) {
				t.Errorf("FirstMatchingPayload() = % X, want % X", data, tt.wantData)
			}
		})
	}
}

func TestAdvertisement_HasCompany(t *testing.T) {
	adv := Advertisement{Sections: []ManufacturerSection{{CompanyID: 0x004C}, {CompanyID: 13}}}
	if !adv.HasCompany(13) {
		t.Error("HasCompany(13) = false, want true")
	}
	if adv.HasCompany(0xFFFF) {
		t.Error("HasCompany(0xFFFF) = true, want false")
	}
}
