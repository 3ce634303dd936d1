package calendar_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/gcalkit/internal/calendar"
	"github.com/teemow/gcalkit/internal/calendar/calendartest"
)

func newTestService(t *testing.T, p *calendartest.Provider, loads *int) *calendar.Service {
	t.Helper()
	svc := calendar.NewService(calendar.Config{ClientID: "test-client"}, p.Loader(loads))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestService_LazyBootstrap(t *testing.T) {
	p := calendartest.New()
	loads := 0
	svc := newTestService(t, p, &loads)

	assert.Equal(t, "uninitialized", svc.Readiness())
	assert.Equal(t, 0, loads)

	_, err := svc.IsClientAuthenticated(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ready", svc.Readiness())
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, p.InitCalls)

	// Subsequent calls reuse the cached provider
	_, err = svc.IsClientAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
}

func TestService_ConcurrentBootstrapRunsOnce(t *testing.T) {
	p := calendartest.New()
	loads := 0
	svc := newTestService(t, p, &loads)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.IsClientAuthenticated(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, loads)
	assert.Equal(t, 1, p.InitCalls)
}

func TestService_BootstrapFailureIsReturnedAndNotCached(t *testing.T) {
	p := calendartest.New()
	initErr := errors.New("client init rejected")
	p.InitErr = initErr
	loads := 0
	svc := newTestService(t, p, &loads)

	_, err := svc.IsClientAuthenticated(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, initErr)
	assert.Equal(t, "uninitialized", svc.Readiness())

	p.InitErr = nil
	_, err = svc.IsClientAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
	assert.Equal(t, "ready", svc.Readiness())
}

func TestService_NoLoader(t *testing.T) {
	svc := calendar.NewService(calendar.Config{}, nil)
	defer svc.Close()

	_, err := svc.IsClientAuthenticated(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no loader")
}

func TestService_SignInSkippedWhenAuthenticated(t *testing.T) {
	p := calendartest.New()
	p.SetSignedIn(true)
	svc := newTestService(t, p, nil)

	// Bootstrap captures the initial state
	ok, err := svc.IsClientAuthenticated(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.SignIn(context.Background()))
	assert.Equal(t, 0, p.SignInCalls)
}

func TestService_SignIn(t *testing.T) {
	p := calendartest.New()
	svc := newTestService(t, p, nil)

	require.NoError(t, svc.SignIn(context.Background()))
	assert.Equal(t, 1, p.SignInCalls)

	ok, err := svc.IsClientAuthenticated(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	// Already signed in now
	require.NoError(t, svc.SignIn(context.Background()))
	assert.Equal(t, 1, p.SignInCalls)
}

func TestService_SignInError(t *testing.T) {
	p := calendartest.New()
	p.SignInErr = errors.New("popup closed")
	svc := newTestService(t, p, nil)

	err := svc.SignIn(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, p.SignInErr)
}

func TestService_SignOutWhenSignedOut(t *testing.T) {
	p := calendartest.New()
	loads := 0
	svc := newTestService(t, p, &loads)

	// A cold service has to load the provider to learn the cached state
	require.NoError(t, svc.SignOut(context.Background()))
	assert.Equal(t, 1, loads)
	assert.Equal(t, 0, p.SignOutCalls)
	assert.Equal(t, 0, p.DisconnectCalls)

	// Once ready, the known state short-circuits
	require.NoError(t, svc.SignOut(context.Background()))
	assert.Equal(t, 1, loads)
	assert.Equal(t, 0, p.SignOutCalls)
}

func TestService_SignInColdWithCachedSession(t *testing.T) {
	p := calendartest.New()
	p.SetSignedIn(true)
	svc := newTestService(t, p, nil)

	require.NoError(t, svc.SignIn(context.Background()))
	assert.Equal(t, 0, p.SignInCalls)
	assert.True(t, svc.Authenticated())
}

func TestService_SignOutColdWithCachedSession(t *testing.T) {
	p := calendartest.New()
	p.SetSignedIn(true)
	svc := newTestService(t, p, nil)

	require.NoError(t, svc.SignOut(context.Background()))
	assert.Equal(t, 1, p.SignOutCalls)
	assert.Equal(t, 1, p.DisconnectCalls)

	ok, err := svc.IsClientAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_SignOutRevokes(t *testing.T) {
	p := calendartest.New()
	svc := newTestService(t, p, nil)

	require.NoError(t, svc.SignIn(context.Background()))
	require.NoError(t, svc.SignOut(context.Background()))

	assert.Equal(t, 1, p.SignOutCalls)
	assert.Equal(t, 1, p.DisconnectCalls)

	ok, err := svc.IsClientAuthenticated(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_IsClientAuthenticatedTracksLastReportedValue(t *testing.T) {
	p := calendartest.New()
	svc := newTestService(t, p, nil)
	ctx := context.Background()

	for _, want := range []bool{true, false, true} {
		p.SetSignedIn(want)
		got, err := svc.IsClientAuthenticated(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestService_ListenOnAuthenticationChanged(t *testing.T) {
	p := calendartest.New()
	svc := newTestService(t, p, nil)

	var mu sync.Mutex
	var seen []bool
	sub, err := svc.ListenOnAuthenticationChanged(context.Background(), func(signedIn bool) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, signedIn)
	})
	require.NoError(t, err)

	p.SetSignedIn(true)
	p.SetSignedIn(false)

	sub.Unsubscribe()
	sub.Unsubscribe()
	p.SetSignedIn(true)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestService_Closed(t *testing.T) {
	p := calendartest.New()
	svc := calendar.NewService(calendar.Config{}, p.Loader(nil))
	require.NoError(t, svc.Close())

	_, err := svc.GetEvent(context.Background(), calendar.GetRequest{CalendarID: "primary", EventID: "e1"})
	assert.ErrorIs(t, err, calendar.ErrServiceClosed)
}

func TestService_CanceledContext(t *testing.T) {
	p := calendartest.New()
	svc := newTestService(t, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.IsClientAuthenticated(ctx)
	// Either the bootstrap won the race or the cancellation did
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
