package errors

import (
	"fmt"
	"strings"
)

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// BackendUnavailable is returned when the container engine or cluster that
// hosts the consumers can't be reached at startup. It's fatal: the process
// exits and relies on its supervisor to restart it.
type BackendUnavailable struct {
	Backend string
	Err     error
}

func (err BackendUnavailable) Error() string {
	return fmt.Sprintf("%s backend unavailable: %s", err.Backend, err.Err)
}

func (err BackendUnavailable) Unwrap() error {
	return err.Err
}

// FriendlyMessage implements the interface used by GetPrintableMessage.
func (err BackendUnavailable) FriendlyMessage() string {
	return fmt.Sprintf("Unable to connect to the %s backend.\n"+
		"Check that GLUU_CONTAINER_METADATA is correct and that the "+
		"credentials or socket are available to this container.\n\n"+
		"Reason: %s", err.Backend, err.Err)
}

// RemoteCommandError represents a command that ran inside a target but exited
// unsuccessfully.
type RemoteCommandError struct {
	Command  []string
	ExitCode int
	Stderr   string
}

func (err RemoteCommandError) Error() string {
	msg := fmt.Sprintf("command %q exited with code %d",
		strings.Join(err.Command, " "), err.ExitCode)
	if stderr := strings.TrimSpace(err.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}
