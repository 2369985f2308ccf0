package bracket

import "errors"

var (
	ErrInsufficientCompetitors = errors.New("at least 2 tracks are needed to seed a bracket")
	ErrInvalidSeeding          = errors.New("invalid seeding")
	ErrMatchupNotFound         = errors.New("matchup not found")
	ErrAlreadyDecided          = errors.New("matchup has already been decided")
	ErrInvalidWinner           = errors.New("winner is not part of this matchup")
	ErrMatchupNotReady         = errors.New("matchup is waiting on an earlier round")
	ErrCorruptBracket          = errors.New("corrupt bracket")
)
