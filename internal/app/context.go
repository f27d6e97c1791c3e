package app

import (
	"fmt"

	"shiftdesk/internal/config"
	"shiftdesk/internal/domain"
)

// PageContext is what the server tells a page about itself: who is looking
// at it, in which role, and the token every write must carry.
type PageContext struct {
	Role      domain.Role     `json:"role"`
	CSRFToken string          `json:"csrf_token"`
	User      domain.Person   `json:"user"`
	Roster    []domain.Person `json:"roster,omitempty"`
}

// Overrides come from flags or the environment and win over the config file.
type Overrides struct {
	Role      string
	UserID    string
	CSRFToken string
}

// ResolvePageContext picks the role, user and token for a session. It prefers
// overrides, then the session section of the config. The user must be in the
// roster when one is configured.
func ResolvePageContext(cfg *config.Config, o Overrides) (PageContext, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	pc := PageContext{
		Role:      cfg.Session.Role,
		CSRFToken: cfg.Session.CSRFToken,
		User:      domain.Person{ID: cfg.Session.UserID, Name: cfg.Session.UserName},
		Roster:    append([]domain.Person(nil), cfg.Roster...),
	}
	if o.Role != "" {
		pc.Role = domain.Role(o.Role)
	}
	if o.CSRFToken != "" {
		pc.CSRFToken = o.CSRFToken
	}
	if o.UserID != "" && o.UserID != pc.User.ID {
		pc.User = domain.Person{ID: o.UserID}
	}
	if len(pc.Roster) > 0 && pc.User.ID != "" {
		p, ok := cfg.Person(pc.User.ID)
		if !ok {
			return pc, fmt.Errorf("user %s is not in the roster", pc.User.ID)
		}
		pc.User = p
	}
	if _, ok := initializers[pc.Role]; !ok {
		return pc, fmt.Errorf("unknown role %q", pc.Role)
	}
	return pc, nil
}

// Foremen lists the roster without the current user, the people a leader
// reviews.
func (pc PageContext) Foremen() []domain.Person {
	out := make([]domain.Person, 0, len(pc.Roster))
	for _, p := range pc.Roster {
		if p.ID != pc.User.ID {
			out = append(out, p)
		}
	}
	return out
}
