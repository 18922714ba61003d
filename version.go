package asyncsvc

// Version is the current version of the go-asyncsvc library
const Version = "1.0.0"

// VersionInfo contains detailed version information
type VersionInfo struct {
	// Version is the semantic version
	Version string
	// Runtimes lists the bundled Runtime implementations
	Runtimes []string
}

// GetVersion returns the current version information
func GetVersion() VersionInfo {
	return VersionInfo{
		Version:  Version,
		Runtimes: []string{"goroutine", "stopper", "loop"},
	}
}
