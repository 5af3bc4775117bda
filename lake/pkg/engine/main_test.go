package engine

import (
	"flag"
	"log/slog"
	"os"
	"testing"

	"github.com/lakeoracle/oracle/lake/pkg/logger"
)

var testLog *slog.Logger

func TestMain(m *testing.M) {
	flag.Parse()
	testLog = logger.Discard()
	if testing.Verbose() {
		testLog = logger.NewWithWriter(os.Stderr, true)
	}
	os.Exit(m.Run())
}
