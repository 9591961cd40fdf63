package services

import (
	"io"

	"listing-watch/utils"
)

func newTestLogger() *utils.Logger {
	return utils.NewLoggerWithOptions(utils.LogOptions{Writer: io.Discard})
}
