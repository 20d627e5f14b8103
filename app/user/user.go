// Package user keeps the local accounts created from WeChat profiles.
//
// Users are keyed by openid. The first login allocates a numeric user ID
// from a counter starting at FirstUserID; later logins refresh the profile
// fields the provider returned and keep the ID.
package user

import (
	"context"
	"time"
)

// FirstUserID is the ID given to the first account.
const FirstUserID int64 = 1000000000

// User is a local account.
type User struct {
	UserID    int64     `bson:"userId" json:"userId"`
	OpenID    string    `bson:"openid" json:"openid"`
	UnionID   string    `bson:"unionid,omitempty" json:"unionid,omitempty"`
	Nickname  string    `bson:"nickname,omitempty" json:"nickname,omitempty"`
	AvatarURL string    `bson:"headimgurl,omitempty" json:"headimgurl,omitempty"`
	Sex       int       `bson:"sex" json:"sex"`
	Language  string    `bson:"language,omitempty" json:"language,omitempty"`
	City      string    `bson:"city,omitempty" json:"city,omitempty"`
	Province  string    `bson:"province,omitempty" json:"province,omitempty"`
	Country   string    `bson:"country,omitempty" json:"country,omitempty"`
	Privilege []string  `bson:"privilege" json:"privilege"`
	Role      []int     `bson:"role" json:"role"`
	CreatedAt time.Time `bson:"create_at" json:"create_at"`
	UpdatedAt time.Time `bson:"update_at" json:"update_at"`
}

// Store persists users.
type Store interface {
	// Upsert creates the user for u.OpenID or refreshes its non-empty
	// profile fields, and returns the stored user.
	Upsert(ctx context.Context, u User) (User, error)
	GetByID(ctx context.Context, userID int64) (User, error)
	GetByOpenID(ctx context.Context, openID string) (User, error)
}

// merge copies the non-empty profile fields of src onto dst.
func merge(dst *User, src User) {
	if src.UnionID != "" {
		dst.UnionID = src.UnionID
	}
	if src.Nickname != "" {
		dst.Nickname = src.Nickname
	}
	if src.AvatarURL != "" {
		dst.AvatarURL = src.AvatarURL
	}
	if src.Sex != 0 {
		dst.Sex = src.Sex
	}
	if src.Language != "" {
		dst.Language = src.Language
	}
	if src.City != "" {
		dst.City = src.City
	}
	if src.Province != "" {
		dst.Province = src.Province
	}
	if src.Country != "" {
		dst.Country = src.Country
	}
	if src.Privilege != nil {
		dst.Privilege = src.Privilege
	}
}

func normalize(u *User) {
	if u.Privilege == nil {
		u.Privilege = []string{}
	}
	if u.Role == nil {
		u.Role = []int{0}
	}
}
