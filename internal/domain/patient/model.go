package patient

// SelfID identifies the account holder in cart entries and assignments.
const SelfID = "self"

// Profile is the account holder. Age stays a string because the profile
// form accepts free text.
type Profile struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Age              string `json:"age"`
	Gender           string `json:"gender"`
	Address          string `json:"address"`
	EmergencyContact string `json:"emergencyContact"`
}

type FamilyMember struct {
	ID           string `json:"id"`
	Name         string `json:"name" validate:"required"`
	Age          string `json:"age" validate:"required"`
	Gender       string `json:"gender" validate:"required"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

// Descriptor is the read-only view of a patient used by the cart and booking
// flow.
type Descriptor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Age          string `json:"age,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Relationship string `json:"relationship,omitempty"`
}

// SelfDescriptor describes the account holder, defaulting the name to "Self".
func SelfDescriptor(p *Profile) Descriptor {
	d := Descriptor{ID: SelfID, Name: "Self", Relationship: "Self"}
	if p != nil {
		if p.Name != "" {
			d.Name = p.Name
		}
		d.Age = p.Age
		d.Gender = p.Gender
	}
	return d
}

func (m FamilyMember) Descriptor() Descriptor {
	return Descriptor{
		ID:           m.ID,
		Name:         m.Name,
		Age:          m.Age,
		Gender:       m.Gender,
		Relationship: m.Relationship,
	}
}
