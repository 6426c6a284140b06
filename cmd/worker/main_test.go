package main

import (
	"testing"

	_ "github.com/supplyhub/supplyhub/internal/testing/guard"
)

func TestWorkerSkipsInTestMode(t *testing.T) {
	main()
}
