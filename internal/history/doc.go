// Package history reads the controller's watering log from its ThingSpeak
// channel. Each feed row is one watering: field1 the start time, field2 the
// duration in milliseconds and field3 the reason code.
package history
