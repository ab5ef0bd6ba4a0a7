package txn

import "github.com/rs/zerolog"

func nopLog() zerolog.Logger {
	return zerolog.Nop()
}
