package game

// Rejection is a refused intent. It is answered with a warning reply and
// leaves the state untouched.
type Rejection struct {
	// Code is a stable label for metrics and logs.
	Code   string
	reason string
}

func (r *Rejection) Error() string { return r.reason }

// Warning is the reply text sent to the offending message.
func (r *Rejection) Warning() string { return "Warning: " + r.reason }

var (
	ErrNoActiveGame   = &Rejection{Code: "no_active_game", reason: "no active game"}
	ErrGameInProgress = &Rejection{Code: "game_in_progress", reason: "there is already an active game"}
	ErrDefenderClue   = &Rejection{Code: "defender_clue", reason: "defenders can't give clues"}
	ErrAttackerAdd    = &Rejection{Code: "attacker_add", reason: "attackers can't add letters"}
	ErrNoSuchClue     = &Rejection{Code: "no_such_clue", reason: "no clue with that number exists"}
	ErrInvalidCommand = &Rejection{Code: "invalid_command", reason: "invalid command. Type `!!help` to see a list of commands."}
)
