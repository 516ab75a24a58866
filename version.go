package odbcarrow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// LibraryVersion is the version of this module.
const LibraryVersion = "0.3.0"

// Version is a dotted version number such as the one reported by the ODBC
// driver manager ("03.52.0000.0000").
type Version struct {
	Major      int
	Minor      int
	Patch      int
	VersionStr string
}

// String returns the version as a string
func (v Version) String() string {
	if v.VersionStr != "" {
		return v.VersionStr
	}
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// AtLeast checks if the version is at least the given major, minor, patch
func (v Version) AtLeast(major, minor, patch int) bool {
	if v.Major > major {
		return true
	}
	if v.Major < major {
		return false
	}
	// Major is equal, check minor
	if v.Minor > minor {
		return true
	}
	if v.Minor < minor {
		return false
	}
	// Minor is equal, check patch
	return v.Patch >= patch
}

// IsODBC3 reports whether the version is at least ODBC 3.0.
func (v Version) IsODBC3() bool {
	return v.AtLeast(3, 0, 0)
}

// ParseVersion parses up to three dot separated numbers. Leading zeros and
// a "v" prefix are accepted; missing components are zero.
func ParseVersion(s string) (Version, error) {
	v := Version{VersionStr: s}

	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	dst := []*int{&v.Major, &v.Minor, &v.Patch}
	for i := 0; i < len(parts) && i < len(dst); i++ {
		n, err := strconv.Atoi(parts[i])
		if err != nil {
			return Version{}, errors.Wrapf(err, "parse version %q", s)
		}
		*dst[i] = n
	}
	return v, nil
}

// DriverManagerVersion asks the driver manager for its version
// (SQL_DM_VER). It needs no connection to a data source.
func DriverManagerVersion() (Version, error) {
	if !DriverManagerAvailable() {
		return Version{}, GetDriverManagerError()
	}

	var env, dbc uintptr
	if ret := sqlAllocHandle(sqlHandleEnv, 0, &env); !succeeded(ret) {
		return Version{}, errors.New("allocate environment handle failed")
	}
	defer sqlFreeHandle(sqlHandleEnv, env)

	if ret := setAttr(sqlSetEnvAttr, env, sqlAttrODBCVersion, sqlOVODBC3); !succeeded(ret) {
		return Version{}, odbcError(ret, sqlHandleEnv, env, "set ODBC version")
	}
	if ret := sqlAllocHandle(sqlHandleDbc, env, &dbc); !succeeded(ret) {
		return Version{}, odbcError(ret, sqlHandleEnv, env, "allocate connection handle")
	}
	defer sqlFreeHandle(sqlHandleDbc, dbc)

	buf := make([]byte, 64)
	var n int16
	if ret := sqlGetInfo(dbc, sqlInfoDMVer, &buf[0], int16(len(buf)), &n); !succeeded(ret) {
		return Version{}, odbcError(ret, sqlHandleDbc, dbc, "get driver manager version")
	}
	return ParseVersion(cString(buf))
}
