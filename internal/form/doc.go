// Package form keeps the controller's settings form in sync with the
// configuration stored on the device.
//
// A Controller holds two snapshots. The device config is what /configs last
// returned and is only replaced by a successful fetch. The form config is
// read back out of the widgets after every edit. The form is dirty when the
// two differ once the "HH:MM" alarm widget has been split into the device's
// alarm_hours and alarm_minutes keys; save and undo are enabled exactly
// while it is dirty.
//
// Some fields only make sense while a checkbox is set (the soil check
// interval and threshold under check_low_soil_humi, the alarm time under
// activate_alarm). Unchecking the box disables them and puts the device value
// back on screen, so a value the user can no longer see as active is never
// submitted.
//
//	ctrl := form.NewController(device.NewClient("regador.local", 80))
//	if err := ctrl.LoadFormFromDevice(ctx); err != nil {
//	    return err
//	}
//	_ = ctrl.Change("min_soil_humi", "25")
//	if ctrl.SaveEnabled() {
//	    err = ctrl.Save(ctx)
//	}
package form
