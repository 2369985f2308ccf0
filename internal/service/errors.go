package service

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrNotLoggedIn        = errors.New("user ID not found in the context")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNoActiveBracket    = errors.New("group has no active bracket")
	ErrBracketNotPending  = errors.New("bracket has already been started")
	ErrInvalidTrackOrder  = errors.New("track order must list distinct tracks of the album")
	ErrUnknownTrackName   = errors.New("no track in this matchup matches that name")
	ErrAmbiguousTrackName = errors.New("name matches both tracks of this matchup")
	ErrInvalidState       = errors.New("invalid or expired authorization state")
)
