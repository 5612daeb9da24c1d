package domain

import "strings"

// Account owns sites.
type Account struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Site is a service location; Region drives zone matching and queue weighting.
type Site struct {
	ID        string `yaml:"id"`
	AccountID string `yaml:"account_id"`
	Name      string `yaml:"name"`
	Region    string `yaml:"region"`
}

// Technician is a field worker who can be dispatched.
type Technician struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	ProviderID     *string  `yaml:"provider_id"`
	Capabilities   []string `yaml:"capabilities"`
	HomeRegion     string   `yaml:"home_region"`
	ServiceRegions []string `yaml:"service_regions"`
	Active         bool     `yaml:"active"`
}

// HasCapability matches service types case-insensitively.
func (t Technician) HasCapability(serviceType string) bool {
	want := NormalizeIncidentType(serviceType)
	for _, c := range t.Capabilities {
		if NormalizeIncidentType(c) == want {
			return true
		}
	}
	return false
}

// ServesRegion reports whether region is the home region or a service region.
func (t Technician) ServesRegion(region string) bool {
	if strings.EqualFold(t.HomeRegion, region) {
		return true
	}
	for _, r := range t.ServiceRegions {
		if strings.EqualFold(r, region) {
			return true
		}
	}
	return false
}
