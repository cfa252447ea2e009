package prober

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/flxmf365/hospital-booking-bot/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

type browserKey struct{}

// fakeBrowser hands out sessions numbered from 1, tabs can only be opened on
// sessions that are not dead.
type fakeBrowser struct {
	mu        sync.Mutex
	launches  int
	dead      map[int]bool
	launchErr error
	cancelled []int
}

func (f *fakeBrowser) launch() (chromeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launchErr != nil {
		return chromeSession{}, f.launchErr
	}
	f.launches++
	id := f.launches
	ctx := context.WithValue(context.Background(), browserKey{}, id)
	return chromeSession{ctx: ctx, cancel: func() {
		f.mu.Lock()
		f.cancelled = append(f.cancelled, id)
		f.mu.Unlock()
	}}, nil
}

func (f *fakeBrowser) openTab(browser context.Context) (context.Context, context.CancelFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := browser.Value(browserKey{}).(int)
	if f.dead[id] {
		return nil, nil, errors.New("websocket: close 1006 (abnormal closure)")
	}
	ctx, cancel := context.WithCancel(browser)
	return ctx, cancel, nil
}

func (f *fakeBrowser) kill(id int) {
	f.mu.Lock()
	f.dead[id] = true
	f.mu.Unlock()
}

func newFakeChrome(t *testing.T) (*ChromeAccessor, *fakeBrowser, *telemetry.Recorder) {
	t.Helper()
	browser := &fakeBrowser{dead: map[int]bool{}}
	rec := telemetry.NewRecorder()
	accessor, err := newChromeAccessor(DefaultChromeOptions(), rec, browser.launch, browser.openTab)
	require.NoError(t, err)
	return accessor, browser, rec
}

func TestChromeAccessorRelaunchesDeadBrowser(t *testing.T) {
	accessor, browser, rec := newFakeChrome(t)
	require.Equal(t, 1, browser.launches)

	tab, cancel, err := accessor.tab()
	require.NoError(t, err)
	require.Equal(t, 1, tab.Value(browserKey{}))
	cancel()

	browser.kill(1)

	tab, cancel, err = accessor.tab()
	require.NoError(t, err)
	require.Equal(t, 2, tab.Value(browserKey{}))
	cancel()
	require.Equal(t, 2, browser.launches)
	require.Equal(t, []int{1}, browser.cancelled)
	require.True(t, rec.Has(telemetry.KindWarning, report_chrome_accessor_relaunch))

	// the new browser is reused
	_, cancel, err = accessor.tab()
	require.NoError(t, err)
	cancel()
	require.Equal(t, 2, browser.launches)
}

func TestChromeAccessorRelaunchOnce(t *testing.T) {
	accessor, browser, _ := newFakeChrome(t)
	browser.kill(1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, cancel, err := accessor.tab()
			if err == nil {
				cancel()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 2, browser.launches)
}

func TestChromeAccessorRelaunchFails(t *testing.T) {
	accessor, browser, rec := newFakeChrome(t)
	browser.kill(1)
	browser.launchErr = errors.New("chrome not found")

	_, _, err := accessor.tab()
	require.ErrorContains(t, err, "chrome not found")
	require.True(t, rec.Has(telemetry.KindBroken, report_chrome_accessor_relaunch))

	browser.launchErr = nil
	_, cancel, err := accessor.tab()
	require.NoError(t, err)
	cancel()
	require.Equal(t, 2, browser.launches)
}

func TestChromeAccessorClosed(t *testing.T) {
	accessor, browser, _ := newFakeChrome(t)
	require.NoError(t, accessor.Close())
	require.NoError(t, accessor.Close())
	require.Equal(t, []int{1}, browser.cancelled)

	_, _, err := accessor.tab()
	require.ErrorIs(t, err, errAccessorClosed)
	require.Equal(t, 1, browser.launches)
}
