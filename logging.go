package odfilter

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewLogger returns human readable logger in verbose mode and JSON logger otherwise.
// Every record carries identifier of the run.
func NewLogger(verbose bool) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("run_id", uuid.NewString())), nil
}
