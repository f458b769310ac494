package model

// StartingCredits is the learning-credit balance a new profile is created with.
const StartingCredits uint64 = 100

// UserProfile is the caller-owned profile stored by the backend.
// It is created once per identity and mutated by full-object replace.
type UserProfile struct {
	Name                     string  `json:"name"`
	Gmail                    *string `json:"gmail,omitempty"` // optional contact address, display only
	RemainingLearningCredits uint64  `json:"remainingLearningCredits"`
	ProfileCreatedAt         Time    `json:"profileCreatedAt"`
}

// HasEnoughCredits reports whether the profile can pay cost.
// A nil profile never can.
//
// This is a pre-submit comparison only: the backend enforces the balance.
func (p *UserProfile) HasEnoughCredits(cost uint64) bool {
	return p != nil && p.RemainingLearningCredits >= cost
}

// ContactAddress returns the gmail value or "" when absent.
func (p *UserProfile) ContactAddress() string {
	if p == nil || p.Gmail == nil {
		return ""
	}
	return *p.Gmail
}
