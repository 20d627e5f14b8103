package user

import (
	"context"
	"strconv"

	"github.com/dmitrymomot/wxauth/core/authflow"
)

// Accounts turns provider profiles into local users for the
// authorization flow.
type Accounts struct {
	store Store
}

var _ authflow.Accounts = (*Accounts)(nil)

func NewAccounts(store Store) *Accounts {
	return &Accounts{store: store}
}

// Upsert stores the profile and returns the session identity for it.
func (a *Accounts) Upsert(ctx context.Context, p authflow.Profile) (authflow.Identity, error) {
	u, err := a.store.Upsert(ctx, FromProfile(p))
	if err != nil {
		return authflow.Identity{}, err
	}
	return Identity(u, p.Raw), nil
}

// FromProfile maps the provider profile, including the userinfo fields only
// present in the raw document.
func FromProfile(p authflow.Profile) User {
	u := User{
		OpenID:    p.ProviderID,
		UnionID:   p.UnionID,
		Nickname:  p.Nickname,
		AvatarURL: p.AvatarURL,
		Language:  rawString(p.Raw, "language"),
		City:      rawString(p.Raw, "city"),
		Province:  rawString(p.Raw, "province"),
		Country:   rawString(p.Raw, "country"),
	}
	if sex, ok := p.Raw["sex"].(float64); ok {
		u.Sex = int(sex)
	}
	if list, ok := p.Raw["privilege"].([]any); ok {
		u.Privilege = make([]string, 0, len(list))
		for _, v := range list {
			if s, ok := v.(string); ok {
				u.Privilege = append(u.Privilege, s)
			}
		}
	}
	return u
}

// Identity is the session view of u.
func Identity(u User, raw map[string]any) authflow.Identity {
	return authflow.Identity{
		UserID:      strconv.FormatInt(u.UserID, 10),
		DisplayName: u.Nickname,
		ProviderID:  u.OpenID,
		AvatarURL:   u.AvatarURL,
		Raw:         raw,
	}
}

func rawString(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}
