// Package chat is the boundary between the game and the chat room it runs in.
//
// It defines the values that cross that boundary (User, Message, Event), the
// Transport the game drives (broadcast, reply, mark, unmark, leave, logout)
// and the Source it reads events from, plus two concrete transports:
//   - Twitch: joins TWITCH_CHANNEL over IRC. Inbound messages are rendered
//     from chat markdown into the rich-text subset the classifier expects.
//     IRC never echoes a client's own messages, so every line the bot sends
//     is queued back as a self-authored MessagePosted event.
//   - Console: the same contract over an io.Reader/io.Writer pair, used for
//     local play and tests.
//
// Marks (pins) are held by a PinBoard. MemoryPins keeps them in process; the
// db package provides a Postgres-backed board that the HTTP API can list.
package chat
