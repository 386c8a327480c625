// Package dashboard is the full-screen terminal interface of regador.
//
// It is a Bubble Tea program with two screens. The discovery screen lists
// controllers found over mDNS plus the ones remembered in the config file,
// and accepts a typed address. The dashboard screen shows one controller:
//
//   - the four sensor readings, polled every second
//   - a sparkline per sensor over the last 35 samples
//   - the log lines pushed by the controller
//   - the watering history from the ThingSpeak channel, when configured
//   - the settings form with save and undo, and the water-now button
//
// All state lives in the models and changes only in Update. HTTP requests
// run as commands and come back as messages; the websocket reader runs in
// its own goroutine and hands payloads to the program with Program.Send.
// Button animation and the watering timer are tea.Tick messages carrying
// the button generation, so a tick from an earlier watering does nothing.
// Every message also carries the session number of the dashboard that
// issued it; after esc the next dashboard drops whatever the closed one
// still had in flight.
//
// # Key Bindings
//
//   - ↑/↓ move between fields and buttons
//   - enter/space toggles a checkbox, edits a field or presses a button
//   - w waters now, s saves, u undoes, r reloads the settings
//   - esc returns to the device list, q quits
package dashboard
