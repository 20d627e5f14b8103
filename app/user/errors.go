package user

import "errors"

var (
	ErrNotFound     = errors.New("user: not found")
	ErrEmptyOpenID  = errors.New("user: empty openid")
	ErrUpsertFailed = errors.New("user: upsert failed")
)
