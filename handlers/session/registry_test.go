package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatspeak/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConversation struct {
	id string
}

func (c *stubConversation) SendMessage(ctx context.Context, prompt string) (string, error) {
	return "ok", nil
}

func (c *stubConversation) History() []core.LLMMessage { return nil }

type countingProvider struct {
	calls atomic.Int64
	delay time.Duration
	fail  atomic.Bool
}

func (p *countingProvider) NewConversation(sessionID string) (core.Conversation, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.fail.Load() {
		return nil, errors.New("model unavailable")
	}
	return &stubConversation{id: sessionID}, nil
}

func quietLogger() *core.Logger {
	return core.NewLogger(func(string, string, map[string]interface{}) {})
}

func TestRegistry_GetOrCreateReturnsSameSession(t *testing.T) {
	ids := []string{"abc", "session_1700000000_x9f", "spaces and ünïcödé", "../../etc/passwd", "emoji-🎙️", "a/b?c=d&e#f"}

	provider := &countingProvider{}
	reg := NewRegistry(provider, DefaultConfig(), quietLogger())

	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			before := provider.calls.Load()

			first, err := reg.GetOrCreate(id)
			require.NoError(t, err)
			second, err := reg.GetOrCreate(id)
			require.NoError(t, err)

			assert.Same(t, first, second)
			assert.Same(t, first.Conversation, second.Conversation)
			assert.Equal(t, id, first.ID)
			assert.Equal(t, before+1, provider.calls.Load())
		})
	}
	assert.Equal(t, len(ids), reg.Len())
}

func TestRegistry_ConcurrentCreationYieldsOneSession(t *testing.T) {
	const callers = 64

	provider := &countingProvider{delay: 5 * time.Millisecond}
	reg := NewRegistry(provider, DefaultConfig(), quietLogger())

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]*Session, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = reg.GetOrCreate("shared")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, int64(1), provider.calls.Load())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_DistinctSessionsDoNotBlockEachOther(t *testing.T) {
	provider := &countingProvider{delay: 50 * time.Millisecond}
	reg := NewRegistry(provider, DefaultConfig(), quietLogger())

	var wg sync.WaitGroup
	begin := time.Now()
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.GetOrCreate(strings.Repeat("s", i+1))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Less(t, time.Since(begin), 8*50*time.Millisecond)
	assert.Equal(t, 8, reg.Len())
}

func TestRegistry_FailedCreationIsRetried(t *testing.T) {
	provider := &countingProvider{}
	provider.fail.Store(true)
	reg := NewRegistry(provider, DefaultConfig(), quietLogger())

	_, err := reg.GetOrCreate("flaky")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrProvider))
	assert.Equal(t, 0, reg.Len())

	provider.fail.Store(false)
	s, err := reg.GetOrCreate("flaky")
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, int64(2), provider.calls.Load())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_EmptyID(t *testing.T) {
	provider := &countingProvider{}
	reg := NewRegistry(provider, DefaultConfig(), quietLogger())

	_, err := reg.GetOrCreate("")
	require.Error(t, err)
	assert.Zero(t, provider.calls.Load())
}

func TestRegistry_TranscriptWritten(t *testing.T) {
	dir := t.TempDir()
	reg := NewRegistry(&countingProvider{}, SessionConfig{TranscriptDir: dir}, quietLogger())

	s, err := reg.GetOrCreate("a/b")
	require.NoError(t, err)
	s.Logger.Info("turn completed", "reply", "hello")
	reg.Close()

	data, err := os.ReadFile(filepath.Join(dir, "a%2Fb.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3) // metadata, creation, turn
	assert.Contains(t, lines[0], `"session_id":"a/b"`)
	assert.Contains(t, lines[2], `"msg":"turn completed"`)
	assert.Contains(t, lines[2], `"reply":"hello"`)

	_, err = reg.GetOrCreate("after-close")
	assert.Error(t, err)
}

func TestSession_AcquireTurnSerializes(t *testing.T) {
	reg := NewRegistry(&countingProvider{}, DefaultConfig(), quietLogger())
	s, err := reg.GetOrCreate("serial")
	require.NoError(t, err)

	release, err := s.AcquireTurn(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.AcquireTurn(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second call is a no-op

	release2, err := s.AcquireTurn(context.Background())
	require.NoError(t, err)
	release2()
}

func TestSession_TurnCounter(t *testing.T) {
	reg := NewRegistry(&countingProvider{}, DefaultConfig(), quietLogger())
	s, err := reg.GetOrCreate("count")
	require.NoError(t, err)

	assert.Equal(t, int64(0), s.Turns())
	assert.Equal(t, int64(1), s.RecordTurn())
	assert.Equal(t, int64(2), s.RecordTurn())
	assert.Equal(t, int64(2), s.Turns())
}
