package cmd

import (
	"errors"
	"fmt"
	"os"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/config"
	"github.com/ohcupload/ohcupload/internal/core/engine"
)

// exitCodeFor maps a command error to a semantic foundry exit code.
func exitCodeFor(err error) foundry.ExitCode {
	var verr *config.ValidationError
	switch {
	case err == nil:
		return foundry.ExitCode(0)
	case errors.Is(err, engine.ErrInactive), errors.As(err, &verr):
		return foundry.ExitConfigInvalid
	case errors.Is(err, os.ErrNotExist):
		return foundry.ExitFileNotFound
	default:
		return foundry.ExitFailure
	}
}

// ExitWithCode logs err with exit code metadata and exits the process.
// A nil logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	if logger == nil {
		ExitWithCodeStderr(exitCode, msg, err)
		return
	}

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	if envelope, ok := err.(*gferrors.ErrorEnvelope); ok {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if original, ok := envelope.Original.(error); ok {
			err = original
		}
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Error(msg, fields...)

	os.Exit(info.Code)
}

// ExitWithCodeStderr is used before a logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}

	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		os.Exit(int(exitCode))
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
	os.Exit(info.Code)
}

// Fail exits with the code matching a command error.
func Fail(err error) {
	ExitWithCodeStderr(exitCodeFor(err), "Command execution failed", err)
}
