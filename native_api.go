package odbcarrow

import (
	"fmt"
	"runtime"
)

// DriverManagerInfo describes the ODBC driver manager status.
type DriverManagerInfo struct {
	Available    bool   // Whether the driver manager could be loaded
	Architecture string // Current architecture (arm64, amd64, etc.)
	Platform     string // Current platform (darwin, linux, windows)
	Path         string // Library the driver manager was loaded from
	Version      string // Version reported by the driver manager
	Error        string // Error message if loading failed
}

// GetDriverManagerInfo returns detailed information about the driver manager.
func GetDriverManagerInfo() DriverManagerInfo {
	// This will trigger loading if it hasn't happened yet
	loadDriverManager()

	info := DriverManagerInfo{
		Available:    driverManagerLoaded,
		Architecture: runtime.GOARCH,
		Platform:     runtime.GOOS,
		Path:         driverManagerPath,
	}

	if driverManagerError != nil {
		info.Error = driverManagerError.Error()
		return info
	}

	if v, err := DriverManagerVersion(); err == nil {
		info.Version = v.String()
	}
	return info
}

// String returns a human-readable summary of the driver manager status
func (i DriverManagerInfo) String() string {
	if i.Available {
		return fmt.Sprintf("ODBC driver manager: Available\nPlatform: %s/%s\nLibrary: %s\nVersion: %s",
			i.Platform, i.Architecture, i.Path, i.Version)
	}

	return fmt.Sprintf("ODBC driver manager: Not available\nPlatform: %s/%s\nError: %s",
		i.Platform, i.Architecture, i.Error)
}

// VersionInfo returns information about the library and its runtime.
type VersionInfo struct {
	LibraryVersion       string // Version of this module
	DriverManagerVersion string // Version of the ODBC driver manager, if loaded
	GoVersion            string // Go runtime version
	DriverManager        bool   // Whether the driver manager is available
}

// GetVersionInfo returns version information about the library and the
// driver manager.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		LibraryVersion: LibraryVersion,
		GoVersion:      runtime.Version(),
		DriverManager:  DriverManagerAvailable(),
	}
	if v, err := DriverManagerVersion(); err == nil {
		info.DriverManagerVersion = v.String()
	}
	return info
}

// String returns a human-readable summary of version information
func (v VersionInfo) String() string {
	dm := "Not available"
	if v.DriverManager {
		dm = "Available " + v.DriverManagerVersion
	}

	return fmt.Sprintf("odbcarrow version: %s\nGo version: %s\nODBC driver manager: %s",
		v.LibraryVersion, v.GoVersion, dm)
}
