package domain

import "fmt"

type EndorsementKind string

const (
	EndorseBiometrician EndorsementKind = "biometrician"
	EndorseAnimalEthics EndorsementKind = "animal_ethics"
	EndorseHerbarium    EndorsementKind = "herbarium"
)

var EndorsementKinds = []EndorsementKind{EndorseBiometrician, EndorseAnimalEthics, EndorseHerbarium}

func ParseEndorsementKind(s string) (EndorsementKind, error) {
	for _, k := range EndorsementKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: endorsement kind %q", ErrInvalidKind, s)
}

// Capability returns the specialist capability allowed to provide k.
func (k EndorsementKind) Capability() Capability {
	switch k {
	case EndorseBiometrician:
		return CapBiometrician
	case EndorseAnimalEthics:
		return CapAEC
	case EndorseHerbarium:
		return CapHerbariumCurator
	}
	return ""
}

type EndorsementPair struct {
	Required bool `json:"required"`
	Provided bool `json:"provided"`
}

// Pending reports whether the endorsement is still owed.
func (p EndorsementPair) Pending() bool { return p.Required && !p.Provided }

// Endorsement tracks the specialist sign-offs of one project plan. It lives
// as long as the plan and is never deleted.
type Endorsement struct {
	DocumentID      DocumentID      `json:"document_id"`
	InvolvesAnimals bool            `json:"involves_animals"`
	InvolvesPlants  bool            `json:"involves_plants"`
	Biometrician    EndorsementPair `json:"biometrician"`
	AnimalEthics    EndorsementPair `json:"animal_ethics"`
	Herbarium       EndorsementPair `json:"herbarium"`
}

// Pair returns a pointer to the pair for k, or nil for an unknown kind.
func (e *Endorsement) Pair(k EndorsementKind) *EndorsementPair {
	switch k {
	case EndorseBiometrician:
		return &e.Biometrician
	case EndorseAnimalEthics:
		return &e.AnimalEthics
	case EndorseHerbarium:
		return &e.Herbarium
	}
	return nil
}

// PendingKinds lists the kinds that are required but not yet provided.
func (e Endorsement) PendingKinds() []EndorsementKind {
	var out []EndorsementKind
	for _, k := range EndorsementKinds {
		if e.Pair(k).Pending() {
			out = append(out, k)
		}
	}
	return out
}
