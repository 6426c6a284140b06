// Package guard is blank-imported by tests of main packages. Its init sets
// app.TestModeEnv so main returns before dialing Postgres, Redis or SMTP.
package guard

import "os"

// Env mirrors app.TestModeEnv. Importing app here would pull the whole
// service graph into every guarded test binary.
const Env = "SUPPLYHUB_TEST_MODE"

func init() {
	if _, set := os.LookupEnv(Env); !set {
		_ = os.Setenv(Env, "1")
	}
}
