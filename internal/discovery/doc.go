// Package discovery finds regador controllers on the local network via mDNS.
//
// The controller firmware registers itself as regador[-suffix].local and
// advertises its web server as an "_http._tcp" service. Scan browses that
// service type and keeps the entries whose hostname matches.
//
//	devices, err := discovery.Scan(ctx, 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, d := range devices {
//	    fmt.Println(d.Hostname, d.BaseURL())
//	}
//
// Multicast (UDP 5353) must be allowed on the interface; controllers behind a
// router will not show up.
package discovery
