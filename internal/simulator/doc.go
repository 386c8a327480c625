// Package simulator implements a stand-in irrigation controller for
// development and tests.
//
// It serves the same HTTP API as the firmware:
//
//	GET  /readsensors   random-walk temperature, humidity, soil and light
//	GET  /configs       the settings block
//	POST /configs       form-encoded settings; broadcasts reload-config
//	GET  /websocket     push channel
//
// and a ThingSpeak-shaped GET /channels/{id}/feeds.json with the watering
// log, so the dashboard history table can point at the simulator.
//
// # Watering
//
// A water-now-btn message from any client, a dry soil check or the daily
// alarm starts the pump:
//
//  1. broadcast disable-water-now and a log line
//  2. after watering_time seconds, log the watering and broadcast a log line
//  3. after the cooldown, broadcast enable-water-now
//
// Requests arriving while the pump runs or cools down are refused with a log
// line.
//
// # Shutdown
//
// Start blocks until SIGINT or SIGTERM, then stops pending timers, closes
// websocket clients and drains HTTP requests.
package simulator
