package models

import "time"

// Profile carries the completeness facts the classifier needs from the user/profile
// collaborator. This core never writes profiles.
type Profile struct {
	FirstName      string
	LastName       string
	BirthDate      *time.Time
	Address        string
	City           string
	PostalCode     string
	Province       string
	ConsentTerms   bool
	ConsentPrivacy bool
}

// Complete reports whether every purchase-blocking field is filled and both
// consent flags are set.
func (p *Profile) Complete() bool {
	if p == nil {
		return false
	}
	return p.FirstName != "" &&
		p.LastName != "" &&
		p.BirthDate != nil &&
		p.Address != "" &&
		p.City != "" &&
		p.PostalCode != "" &&
		p.Province != "" &&
		p.ConsentTerms &&
		p.ConsentPrivacy
}
