package solver

// EmptyRangeError is returned when, after board blocking, a player's range
// has zero surviving combos.
type EmptyRangeError struct {
	Player string
}

func (e *EmptyRangeError) Error() string {
	return "solver: " + e.Player + " range is empty after board blocking"
}

// BadBoardError is returned for a malformed board: wrong size or duplicate
// cards.
type BadBoardError struct {
	Reason string
}

func (e *BadBoardError) Error() string {
	return "solver: bad board: " + e.Reason
}

// InvalidConfigError is returned when a solve's stakes or solver parameters
// fall outside their documented range.
type InvalidConfigError struct {
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return "solver: invalid config: " + e.Reason
}
