package speech

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Recognition outcomes. The first four are transient and worth retrying.
var (
	ErrNoMatch       = errors.New("no speech match")
	ErrSpeechTimeout = errors.New("no speech input")
	ErrBusy          = errors.New("recognizer busy")
	ErrClient        = errors.New("client error")

	ErrPermission  = errors.New("permissions error")
	ErrUnsupported = errors.New("speech recognition not available")
	ErrAudio       = errors.New("audio error")
	ErrNetwork     = errors.New("network error")
	ErrServer      = errors.New("server error")
)

var (
	ErrNotReady = errors.New("speech synthesizer is not ready")
	ErrStopped  = errors.New("playback stopped")
)

func IsTransient(err error) bool {
	return errors.Is(err, ErrNoMatch) ||
		errors.Is(err, ErrSpeechTimeout) ||
		errors.Is(err, ErrBusy) ||
		errors.Is(err, ErrClient)
}

// Describe gives the short label shown in the listening status line.
func Describe(err error) string {
	for _, known := range []error{
		ErrNoMatch, ErrSpeechTimeout, ErrBusy, ErrClient,
		ErrPermission, ErrUnsupported, ErrAudio, ErrNetwork, ErrServer,
	} {
		if errors.Is(err, known) {
			return capitalize(known.Error())
		}
	}
	return "Unknown error"
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// classifyRecognizerError maps a transcription failure onto the taxonomy.
func classifyRecognizerError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		var kind error
		switch st.Code() {
		case codes.Unavailable:
			kind = ErrNetwork
		case codes.ResourceExhausted, codes.Aborted:
			kind = ErrBusy
		case codes.PermissionDenied, codes.Unauthenticated:
			kind = ErrPermission
		case codes.DeadlineExceeded:
			kind = ErrSpeechTimeout
		case codes.InvalidArgument:
			kind = ErrClient
		case codes.Unimplemented:
			kind = ErrUnsupported
		case codes.Canceled:
			return context.Canceled
		default:
			kind = ErrServer
		}
		return fmt.Errorf("%w: %s", kind, st.Message())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrSpeechTimeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return fmt.Errorf("%w: %v", ErrServer, err)
}
