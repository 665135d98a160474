package pipeline

import "errors"

// Failure categories surfaced to the user. Every failed intervention resolves
// to exactly one of these and always resumes lesson playback, except
// ErrPermissionDenied and ErrBusy which leave playback untouched.
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrEmptyRecording   = errors.New("empty recording")
	ErrTransportFailure = errors.New("transport failure")
	ErrRemoteError      = errors.New("server reported an error")
	ErrSynthesisFailure = errors.New("speech synthesis failed")
	ErrBusy             = errors.New("an intervention is already in progress")
)
