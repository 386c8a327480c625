// Package push handles the controller's websocket channel.
//
// Client owns the connection and hands raw payloads to the caller. Handler
// turns decoded events into state changes on the water-now Button and the
// LogPanel, and returns an Action describing the follow-up work: reload the
// settings form, refresh the watering history, or arm timers.
//
// Timers carry the button generation that armed them. Every button
// transition bumps the generation, so a timer that fires after
// enable-water-now (or a second disable-water-now) is simply ignored:
//
//	act, _ := h.HandleMessage(payload)
//	for _, t := range act.Timers {
//		schedule(t.After, func() { follow(h.Fire(t)) })
//	}
package push
