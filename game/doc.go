// Package game holds the single Contact game the bot referees and the
// transition function that moves it forward.
//
// State.Apply takes the message an intent was classified from and returns an
// Outcome: the ordered actions to hand to the transport and, when the intent
// was refused, the Rejection explaining why. State is mutated before Apply
// returns, so a failure while delivering the actions never leaves the game
// half-transitioned.
//
// The game has two macro states, no game and active game, inside a running
// bot. Start moves to active, Reset back to none, Shutdown ends the bot and
// every later Apply is a no-op.
package game
