package storage

import "errors"

var (
	ErrDraftNotFound      = errors.New("draft not found")
	ErrAlreadyPosted      = errors.New("draft already posted")
	ErrStorageUnavailable = errors.New("blob storage unavailable")
	ErrNoCredentials      = errors.New("no credentials stored")
)
