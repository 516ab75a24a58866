package odbcarrow

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/ebitengine/purego"
)

// DriverManagerEnv overrides the driver manager library path.
const DriverManagerEnv = "ODBCARROW_DRIVER_MANAGER"

// Library loader
var (
	driverManagerOnce   sync.Once
	driverManagerLoaded bool
	driverManagerError  error
	driverManagerPath   string
	driverManagerHandle uintptr
)

// Driver manager entry points, bound by loadDriverManager. SQLLEN and
// SQLULEN are 64 bit on every platform purego supports.
var (
	sqlAllocHandle    func(handleType int16, input uintptr, output *uintptr) int16
	sqlFreeHandle     func(handleType int16, handle uintptr) int16
	sqlSetEnvAttr     func(env uintptr, attr int32, value uintptr, length int32) int16
	sqlSetConnectAttr func(dbc uintptr, attr int32, value uintptr, length int32) int16
	sqlSetStmtAttr    func(stmt uintptr, attr int32, value uintptr, length int32) int16
	sqlDriverConnect  func(dbc uintptr, hwnd uintptr, in *byte, inLen int16, out *byte, outMax int16, outLen *int16, completion uint16) int16
	sqlDisconnect     func(dbc uintptr) int16
	sqlExecDirect     func(stmt uintptr, text *byte, length int32) int16
	sqlNumResultCols  func(stmt uintptr, count *int16) int16
	sqlDescribeCol    func(stmt uintptr, col uint16, name *byte, nameMax int16, nameLen *int16, dataType *int16, colSize *uint64, digits *int16, nullable *int16) int16
	sqlColAttribute   func(stmt uintptr, col uint16, field uint16, charAttr *byte, bufLen int16, strLen *int16, numAttr *int64) int16
	sqlFetch          func(stmt uintptr) int16
	sqlGetData        func(stmt uintptr, col uint16, targetType int16, target uintptr, bufLen int64, indicator *int64) int16
	sqlCloseCursor    func(stmt uintptr) int16
	sqlGetDiagRec     func(handleType int16, handle uintptr, rec int16, state *byte, native *int32, msg *byte, msgMax int16, msgLen *int16) int16
	sqlGetInfo        func(dbc uintptr, infoType uint16, value *byte, valueMax int16, valueLen *int16) int16
)

// DriverManagerAvailable reports whether the ODBC driver manager could be loaded.
func DriverManagerAvailable() bool {
	loadDriverManager()
	return driverManagerLoaded
}

// GetDriverManagerError returns any error that occurred while loading the
// driver manager.
func GetDriverManagerError() error {
	loadDriverManager()
	return driverManagerError
}

// Attempts to load the driver manager
func loadDriverManager() {
	driverManagerOnce.Do(func() {
		var errs []error
		for _, path := range driverManagerCandidates() {
			handle, err := loadDynamicLibrary(path)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := bindDriverManager(handle); err != nil {
				closeLibrary(handle)
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			driverManagerHandle = handle
			driverManagerPath = path
			driverManagerLoaded = true
			return
		}

		if len(errs) == 0 {
			driverManagerError = errors.New("ODBC driver manager not found")
			return
		}
		driverManagerError = fmt.Errorf("ODBC driver manager not found: %w", errors.Join(errs...))
	})
}

// Candidate library names for the current platform, most specific first.
func driverManagerCandidates() []string {
	if p := os.Getenv(DriverManagerEnv); p != "" {
		return []string{p}
	}

	switch runtime.GOOS {
	case "windows":
		return []string{"odbc32.dll"}
	case "darwin":
		return []string{
			"libodbc.2.dylib",
			"libiodbc.2.dylib",
			"/opt/homebrew/lib/libodbc.2.dylib",
			"/usr/local/lib/libodbc.2.dylib",
		}
	default:
		return []string{"libodbc.so.2", "libodbc.so", "libiodbc.so.2"}
	}
}

// Bind all entry points, failing on the first missing symbol.
func bindDriverManager(handle uintptr) error {
	bindings := []struct {
		name string
		fn   any
	}{
		{"SQLAllocHandle", &sqlAllocHandle},
		{"SQLFreeHandle", &sqlFreeHandle},
		{"SQLSetEnvAttr", &sqlSetEnvAttr},
		{"SQLSetConnectAttr", &sqlSetConnectAttr},
		{"SQLSetStmtAttr", &sqlSetStmtAttr},
		{"SQLDriverConnect", &sqlDriverConnect},
		{"SQLDisconnect", &sqlDisconnect},
		{"SQLExecDirect", &sqlExecDirect},
		{"SQLNumResultCols", &sqlNumResultCols},
		{"SQLDescribeCol", &sqlDescribeCol},
		{"SQLColAttribute", &sqlColAttribute},
		{"SQLFetch", &sqlFetch},
		{"SQLGetData", &sqlGetData},
		{"SQLCloseCursor", &sqlCloseCursor},
		{"SQLGetDiagRec", &sqlGetDiagRec},
		{"SQLGetInfo", &sqlGetInfo},
	}

	for _, b := range bindings {
		sym, err := getSymbol(handle, b.name)
		if err != nil {
			return fmt.Errorf("missing symbol %s: %w", b.name, err)
		}
		purego.RegisterFunc(b.fn, sym)
	}
	return nil
}
