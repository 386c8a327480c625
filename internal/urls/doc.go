// Package urls holds the documentation links printed by the commands and
// the dashboard, so they can be updated in one place before a release.
//
//	fmt.Printf("Veja: %s\n", urls.Troubleshooting)
package urls
