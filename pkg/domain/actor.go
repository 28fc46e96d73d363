package domain

// Capability is a global permission carried by the acting user.
type Capability string

const (
	CapBiometrician     Capability = "biometrician"
	CapHerbariumCurator Capability = "herbarium_curator"
	CapAEC              Capability = "aec"
	CapDirectorate      Capability = "directorate"
	CapSuperuser        Capability = "superuser"
)

type User struct {
	ID                 UserID         `json:"id"`
	DisplayName        string         `json:"display_name"`
	BusinessAreaID     BusinessAreaID `json:"business_area_id"`
	IsBiometrician     bool           `json:"is_biometrician"`
	IsHerbariumCurator bool           `json:"is_herbarium_curator"`
	IsAEC              bool           `json:"is_aec"`
	IsSuperuser        bool           `json:"is_superuser"`
	TokenHash          string         `json:"-"`
}

// Actor is a user resolved for authorization: the role flags folded into a
// capability set, plus the business areas the user leads.
type Actor struct {
	User         User
	Capabilities map[Capability]bool
	LedAreas     []BusinessAreaID
}

// NewActor derives the capability set of u. inDirectorate is true when the
// user's business area is the directorate.
func NewActor(u User, inDirectorate bool, ledAreas []BusinessAreaID) Actor {
	caps := map[Capability]bool{}
	if u.IsBiometrician {
		caps[CapBiometrician] = true
	}
	if u.IsHerbariumCurator {
		caps[CapHerbariumCurator] = true
	}
	if u.IsAEC {
		caps[CapAEC] = true
	}
	if u.IsSuperuser {
		caps[CapSuperuser] = true
	}
	if inDirectorate {
		caps[CapDirectorate] = true
	}
	return Actor{User: u, Capabilities: caps, LedAreas: ledAreas}
}

func (a Actor) ID() UserID { return a.User.ID }

// Has reports whether the actor holds c itself, ignoring superuser.
func (a Actor) Has(c Capability) bool { return a.Capabilities[c] }

// Can reports whether the actor holds c or is a superuser.
func (a Actor) Can(c Capability) bool {
	return a.Capabilities[c] || a.Capabilities[CapSuperuser]
}

func (a Actor) Leads(area BusinessAreaID) bool {
	for _, id := range a.LedAreas {
		if id == area {
			return true
		}
	}
	return false
}
