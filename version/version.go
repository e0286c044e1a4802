package version

// will be replaced with the release version when using goreleaser
var version = "development"

// Version returns the updater version
func Version() string {
	return version
}
