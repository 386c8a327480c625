// Package device is the HTTP client for a regador irrigation controller.
//
// The controller serves two JSON documents and accepts one form post:
//
//	GET  /readsensors  {"event":"read-sensors","data":{"temp":24.5,"hum":61,"soil":38.2,"lumi":72}}
//	GET  /configs      {"configs":{"sens_log_delay":60,"watering_time":10,...}}
//	POST /configs      sens_log_delay=60&watering_time=10&check_low_soil_humi=true&...
//
// Every failure is returned as an *Error whose Type tells network problems,
// bad statuses, unexpected event tags and undecodable bodies apart:
//
//	readings, err := client.ReadSensors(ctx)
//	if device.IsNetworkError(err) {
//	    // keep showing the previous values
//	}
//
// Nothing is retried here. The dashboard simply tries again on its next tick.
package device
