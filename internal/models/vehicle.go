package models

import "strings"

type Vehicle struct {
	VehicleID     int64    `json:"vehicle_id"`
	Plate         string   `json:"plate"`
	Company       string   `json:"company,omitempty"`
	DriverName    string   `json:"driver_name,omitempty"`
	DriverContact string   `json:"driver_contact,omitempty"`
	AvgKMPerDay   *float64 `json:"avg_km_per_day,omitempty"`
}

// NormalizePlate uppercases a plate and strips separators, accepting the
// AAA-NNNN, AAANNNN and Mercosul AAANANN shapes. It returns the compact
// form and whether the input looked like a plate at all.
func NormalizePlate(raw string) (string, bool) {
	cleaned := strings.ToUpper(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if len(cleaned) != 7 {
		return "", false
	}
	for i, r := range cleaned {
		isLetter := r >= 'A' && r <= 'Z'
		isDigit := r >= '0' && r <= '9'
		switch {
		case i < 3:
			if !isLetter {
				return "", false
			}
		case i == 4:
			if !isLetter && !isDigit {
				return "", false
			}
		default:
			if !isDigit {
				return "", false
			}
		}
	}
	return cleaned, true
}
