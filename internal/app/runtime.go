package app

import (
	"os"
	"strconv"
	"sync/atomic"
)

// TestModeEnv makes both binaries return before dialing any backend when set
// to a true value.
const TestModeEnv = "SUPPLYHUB_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether TestModeEnv was set at first call or at the last
// RefreshTestMode.
func InTestMode() bool {
	if v := testMode.Load(); v != nil {
		return *v
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads TestModeEnv.
func RefreshTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	testMode.Store(&on)
	return on
}
