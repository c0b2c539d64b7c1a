package speech

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type staticSource struct {
	audio []byte
	err   error
	block bool
}

func (s *staticSource) Capture(ctx context.Context) ([]byte, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.audio, s.err
}

type fakeSTT struct {
	text string
	conf float64
	err  error
}

func (f *fakeSTT) Transcribe(context.Context, []byte, string) (string, float64, error) {
	return f.text, f.conf, f.err
}

func (f *fakeSTT) Close() error { return nil }

func recv(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "channel closed without a result")
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no recognition result")
		return Result{}
	}
}

func TestListener_Transcript(t *testing.T) {
	l := NewListener(&staticSource{audio: []byte{1, 2}}, &fakeSTT{text: "  hello buddy ", conf: 0.9}, "", nil)

	ch, ok := l.Start(context.Background())
	require.True(t, ok)
	r := recv(t, ch)
	require.NoError(t, r.Err)
	assert.Equal(t, "hello buddy", r.Text)

	_, open := <-ch
	assert.False(t, open)
	assert.False(t, l.Active())
}

func TestListener_SoftOutcomes(t *testing.T) {
	l := NewListener(&staticSource{}, &fakeSTT{text: "x"}, "en-US", nil)
	ch, _ := l.Start(context.Background())
	r := recv(t, ch)
	assert.ErrorIs(t, r.Err, ErrSpeechTimeout)
	assert.True(t, IsTransient(r.Err))

	l = NewListener(&staticSource{audio: []byte{1}}, &fakeSTT{text: "   "}, "en-US", nil)
	ch, _ = l.Start(context.Background())
	r = recv(t, ch)
	assert.ErrorIs(t, r.Err, ErrNoMatch)
	assert.True(t, IsTransient(r.Err))
}

func TestListener_RecognizerErrorsAreClassified(t *testing.T) {
	tests := []struct {
		err       error
		want      error
		transient bool
	}{
		{status.Error(codes.Unavailable, "down"), ErrNetwork, false},
		{status.Error(codes.ResourceExhausted, "quota"), ErrBusy, true},
		{status.Error(codes.PermissionDenied, "nope"), ErrPermission, false},
		{status.Error(codes.Unauthenticated, "nope"), ErrPermission, false},
		{status.Error(codes.DeadlineExceeded, "slow"), ErrSpeechTimeout, true},
		{status.Error(codes.Internal, "boom"), ErrServer, false},
		{errors.New("weird"), ErrServer, false},
	}
	for _, tt := range tests {
		l := NewListener(&staticSource{audio: []byte{1}}, &fakeSTT{err: tt.err}, "en-US", nil)
		ch, _ := l.Start(context.Background())
		r := recv(t, ch)
		assert.ErrorIs(t, r.Err, tt.want, tt.err.Error())
		assert.Equal(t, tt.transient, IsTransient(r.Err), tt.err.Error())
	}
}

func TestListener_CaptureErrorWrapsAsAudio(t *testing.T) {
	l := NewListener(&staticSource{err: errors.New("device busy")}, &fakeSTT{}, "en-US", nil)
	ch, _ := l.Start(context.Background())
	r := recv(t, ch)
	assert.ErrorIs(t, r.Err, ErrAudio)
	assert.False(t, IsTransient(r.Err))
}

func TestListener_SingleActiveSessionAndCancel(t *testing.T) {
	l := NewListener(&staticSource{block: true}, &fakeSTT{text: "x"}, "en-US", nil)

	ch, ok := l.Start(context.Background())
	require.True(t, ok)
	assert.True(t, l.Active())

	again, ok := l.Start(context.Background())
	assert.False(t, ok)
	assert.Nil(t, again)

	l.Cancel()
	r := recv(t, ch)
	assert.ErrorIs(t, r.Err, context.Canceled)
	assert.False(t, l.Active())

	_, ok = l.Start(context.Background())
	assert.True(t, ok)
	l.Cancel()
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "No speech match", Describe(ErrNoMatch))
	assert.Equal(t, "Permissions error", Describe(errors.Join(ErrPermission, errors.New("x"))))
	assert.Equal(t, "Unknown error", Describe(errors.New("x")))
}
