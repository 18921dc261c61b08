package server

import (
	"errors"
	"os"
	"time"

	"github.com/goodieshq/gotftp/internal/protocol"
)

// Presence of this variable turns on verbose server logging
const ENV_VERBOSE = "TFTP_INFO"

type ServerOpts struct {
	Host                   string
	Port                   *uint16       // defaults to the well-known port
	Root                   string        // directory files are read from and written to
	Timeout                time.Duration // per-operation deadline on transfer endpoints
	Verbose                bool          // log packets, transfers and handler errors
	MaxConcurrentTransfers uint32        // 1 handles requests one after another
}

// OptsFromEnv returns default options with verbosity taken from the environment
func OptsFromEnv() ServerOpts {
	_, verbose := os.LookupEnv(ENV_VERBOSE)
	return ServerOpts{Verbose: verbose}
}

// errCodeFor maps a filesystem error onto the code and fixed message sent to
// the client. The error text stays in the server log.
func errCodeFor(err error) (protocol.ErrCode, string) {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return protocol.ErrCodeFileNotFound, "File not found"
	case errors.Is(err, os.ErrPermission):
		return protocol.ErrCodeAccessViolation, "Access violation"
	default:
		return protocol.ErrCodeNotDefined, "Not defined"
	}
}
