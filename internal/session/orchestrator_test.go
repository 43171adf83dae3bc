// File: internal/session/orchestrator_test.go
package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
	"github.com/xkilldash9x/nlm-cli/internal/browser"
	"github.com/xkilldash9x/nlm-cli/internal/config"
	"github.com/xkilldash9x/nlm-cli/internal/hostlock"
	"github.com/xkilldash9x/nlm-cli/internal/profile"
)

// fakeDriver is a scriptable page. Visibility and text are keyed by probe
// value; every located element remembers its text.
type fakeDriver struct {
	mu        sync.Mutex
	visible   map[string][]string // probe value -> element texts
	texts     map[*browser.Element]string
	navErr    error
	navigated []string
	filled    []string
	keys      []string
	clicked   []string
	closed    bool
	// onClick lets a test mutate page state in response to a click.
	onClick func(probeValue string)
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		visible: make(map[string][]string),
		texts:   make(map[*browser.Element]string),
	}
}

func (d *fakeDriver) show(probeValue string, texts ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(texts) == 0 {
		texts = []string{""}
	}
	d.visible[probeValue] = texts
}

func (d *fakeDriver) hide(probeValue string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.visible, probeValue)
}

func (d *fakeDriver) clickedValues() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicked...)
}

func (d *fakeDriver) Candidates(_ context.Context, probe browser.Probe) ([]*browser.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var els []*browser.Element
	for _, text := range d.visible[probe.Value] {
		el := &browser.Element{Probe: probe}
		d.texts[el] = text
		els = append(els, el)
	}
	return els, nil
}

func (d *fakeDriver) IsVisible(_ context.Context, el *browser.Element) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.texts[el]
	return ok, nil
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigated = append(d.navigated, url)
	return d.navErr
}

func (d *fakeDriver) Click(_ context.Context, el *browser.Element, _ bool) error {
	d.mu.Lock()
	d.clicked = append(d.clicked, el.Probe.Value)
	cb := d.onClick
	d.mu.Unlock()
	if cb != nil {
		cb(el.Probe.Value)
	}
	return nil
}

func (d *fakeDriver) Fill(_ context.Context, _ *browser.Element, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filled = append(d.filled, text)
	return nil
}

func (d *fakeDriver) PressKey(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, key)
	return nil
}

func (d *fakeDriver) ReadText(_ context.Context, el *browser.Element) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.texts[el], nil
}

func (d *fakeDriver) UploadFiles(context.Context, string, []string) error { return nil }

func (d *fakeDriver) Screenshot(context.Context) ([]byte, error) { return nil, nil }

func (d *fakeDriver) AllowDownloads(context.Context, string) error { return nil }

func (d *fakeDriver) CurrentURL(context.Context) (string, error) { return "", nil }

func (d *fakeDriver) Evaluate(context.Context, string, interface{}) error { return nil }

func (d *fakeDriver) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

var _ browser.Driver = (*fakeDriver)(nil)

// setupTest builds an orchestrator over a fake driver with fast timings.
func setupTest(t *testing.T, drv *fakeDriver) (*Orchestrator, *config.Config) {
	t.Helper()

	cfg := config.NewDefaultConfig()
	dataDir := t.TempDir()
	cfg.Paths.DataDir = dataDir
	cfg.Paths.LockFile = filepath.Join(dataDir, "test.lock")
	cfg.Browser.SettleDelay = time.Millisecond
	cfg.Lock.Timeout = 500 * time.Millisecond
	cfg.Lock.PollInterval = 10 * time.Millisecond
	cfg.Chat.MaxWait = 200 * time.Millisecond
	cfg.Chat.StartupWait = 10 * time.Millisecond
	cfg.Chat.Cadence = time.Millisecond
	cfg.Chat.RecheckDelay = time.Millisecond
	cfg.Chat.ExtensionDelay = time.Millisecond
	cfg.Search.FastWait = 100 * time.Millisecond
	cfg.Search.Cadence = time.Millisecond

	logger := zap.NewNop()
	locks := hostlock.NewManager(cfg.Paths.LockFile, cfg.Lock.PollInterval, logger)
	profiles := profile.NewStore(cfg.Paths, logger)
	factory := func(context.Context, config.BrowserConfig, string, *zap.Logger) (browser.Driver, error) {
		return drv, nil
	}

	return NewWithDeps(cfg, logger, locks, profiles, factory), cfg
}

// showNotebookHome makes the home page list one notebook tile.
func showNotebookHome(drv *fakeDriver, title string) {
	drv.show(`a[href*="/notebook/"]`, title)
}

func TestInstanceKey(t *testing.T) {
	drv := newFakeDriver()
	orch, cfg := setupTest(t, drv)

	assert.Equal(t, "nb_01", orch.instanceKey("01. Research Notes"))

	cfg.Browser.Instance = "pinned"
	assert.Equal(t, "pinned", orch.instanceKey("01. Research Notes"))

	cfg.Browser.Instance = ""
	cfg.Browser.AutoInstance = false
	assert.Equal(t, defaultInstance, orch.instanceKey("01. Research Notes"))
}

func TestRun_ReleasesLockOnWorkflowError(t *testing.T) {
	drv := newFakeDriver()
	drv.navErr = errors.New("net::ERR_CONNECTION_REFUSED")
	orch, cfg := setupTest(t, drv)

	_, err := orch.ListNotebooks(context.Background())
	require.Error(t, err)
	assert.True(t, drv.closed, "driver must be closed on error")

	// The lock must be free again; a fresh acquire proves release.
	locks := hostlock.NewManager(cfg.Paths.LockFile, cfg.Lock.PollInterval, zap.NewNop())
	handle, err := locks.Acquire(context.Background(), 100*time.Millisecond)
	require.NoError(t, err, "lock was not released after a failed workflow")
	require.NoError(t, handle.Release())
}

func TestRun_BootstrapsInstanceProfile(t *testing.T) {
	drv := newFakeDriver()
	showNotebookHome(drv, "01. Research Notes")
	orch, cfg := setupTest(t, drv)

	_, err := orch.ListNotebooks(context.Background())
	require.NoError(t, err)

	// ListNotebooks runs without a notebook, so the default instance is used.
	profiles := profile.NewStore(cfg.Paths, zap.NewNop())
	assert.DirExists(t, profiles.InstanceDir(defaultInstance, cfg.Browser.Engine))
}

func TestListNotebooks(t *testing.T) {
	drv := newFakeDriver()
	drv.show(`a[href*="/notebook/"]`, "01. Research Notes", "Reading List", "01. Research Notes")
	orch, _ := setupTest(t, drv)

	titles, err := orch.ListNotebooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"01. Research Notes", "Reading List"}, titles)
}

func TestDetectSearchState_Ready(t *testing.T) {
	drv := newFakeDriver()
	showNotebookHome(drv, "01. Research Notes")
	drv.show(`textarea[aria-label*="Discover sources"]`)
	orch, _ := setupTest(t, drv)

	state, err := orch.DetectSearchState(context.Background(), "01. Research Notes")
	require.NoError(t, err)
	assert.Equal(t, schemas.SearchReady, state)
}

func TestDetectSearchState_Pending(t *testing.T) {
	drv := newFakeDriver()
	showNotebookHome(drv, "01. Research Notes")
	drv.show(`button[aria-label*="View"]`)
	orch, _ := setupTest(t, drv)

	state, err := orch.DetectSearchState(context.Background(), "01. Research Notes")
	require.NoError(t, err)
	assert.Equal(t, schemas.SearchPendingResults, state)
}

func TestDetectSearchState_UnknownNotebook(t *testing.T) {
	drv := newFakeDriver()
	showNotebookHome(drv, "Something Else")
	orch, _ := setupTest(t, drv)

	_, err := orch.DetectSearchState(context.Background(), "01. Research Notes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSearchSources_PendingWithoutAutoClearFails(t *testing.T) {
	drv := newFakeDriver()
	showNotebookHome(drv, "01. Research Notes")
	drv.show(`button[aria-label*="View"]`)
	orch, cfg := setupTest(t, drv)
	cfg.Search.AutoClear = false

	_, err := orch.SearchSources(context.Background(), "01. Research Notes", "query", schemas.ModeFast, schemas.SourceWeb)
	require.Error(t, err)
	assert.True(t, schemas.IsPrecondition(err))

	// The failed precondition must not leave the lock held.
	locks := hostlock.NewManager(cfg.Paths.LockFile, cfg.Lock.PollInterval, zap.NewNop())
	handle, err := locks.Acquire(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, handle.Release())
}

func TestChat_StableAnswerCompletes(t *testing.T) {
	drv := newFakeDriver()
	showNotebookHome(drv, "01. Research Notes")
	drv.show(`textarea[aria-label="Query box"]`)
	answer := "The notebook's sources agree on a single clear conclusion here."
	drv.show(`[data-message-role="assistant"]`, answer)
	orch, _ := setupTest(t, drv)

	result, err := orch.Chat(context.Background(), "01. Research Notes", "What is the conclusion?")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Complete)
	assert.Equal(t, answer, result.Answer)
	assert.Equal(t, []string{"What is the conclusion?"}, drv.filled)
	assert.Contains(t, drv.keys, "\r")
}

func TestChat_ClearsPendingDiscoveryFirst(t *testing.T) {
	drv := newFakeDriver()
	showNotebookHome(drv, "01. Research Notes")
	drv.show(`button[aria-label*="View"]`)
	drv.show(`button[aria-label*="Remove"]`)
	drv.show(`textarea[aria-label="Query box"]`)
	answer := "The notebook's sources agree on a single clear conclusion here."
	drv.show(`[data-message-role="assistant"]`, answer)

	// Removing the last result collapses the discovery panel.
	drv.onClick = func(value string) {
		if value == `button[aria-label*="Remove"]` {
			drv.hide(`button[aria-label*="Remove"]`)
			drv.hide(`button[aria-label*="View"]`)
		}
	}
	orch, _ := setupTest(t, drv)

	result, err := orch.Chat(context.Background(), "01. Research Notes", "What is the conclusion?")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Complete)
	assert.Equal(t, answer, result.Answer)
	assert.Contains(t, drv.clickedValues(), `button[aria-label*="Remove"]`)
}

func TestDetectMode(t *testing.T) {
	testCases := []struct {
		name     string
		visible  string
		expected schemas.UIMode
	}{
		{"source search", `textarea[aria-label*="Discover sources"]`, schemas.ModeSourceSearch},
		{"chat", `textarea[aria-label="Query box"]`, schemas.ModeChat},
		{"unknown", "", schemas.ModeUnknownUI},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			drv := newFakeDriver()
			showNotebookHome(drv, "01. Research Notes")
			if tc.visible != "" {
				drv.show(tc.visible)
			}
			orch, _ := setupTest(t, drv)

			mode, err := orch.DetectMode(context.Background(), "01. Research Notes")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, mode)
		})
	}
}

func TestSaveNote_AnyRenderedMessageSuffices(t *testing.T) {
	drv := newFakeDriver()
	showNotebookHome(drv, "01. Research Notes")
	drv.show(`[class*="chat-message"]`, "An answer without a role attribute.")
	drv.show(`button[aria-label*="Save as note"]`)
	orch, _ := setupTest(t, drv)

	require.NoError(t, orch.SaveNote(context.Background(), "01. Research Notes"))
	assert.Contains(t, drv.clickedValues(), `button[aria-label*="Save as note"]`)
}

func TestChat_TimeoutReturnsPartial(t *testing.T) {
	drv := newFakeDriver()
	showNotebookHome(drv, "01. Research Notes")
	drv.show(`textarea[aria-label="Query box"]`)
	// Short text never reaches the stability minimum.
	drv.show(`[data-message-role="assistant"]`, "Thinking...")
	drv.show(`button[aria-label*="Stop"]`)
	orch, _ := setupTest(t, drv)

	result, err := orch.Chat(context.Background(), "01. Research Notes", "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrCompletionTimeout)
	require.NotNil(t, result)
	assert.False(t, result.Complete)
	assert.Equal(t, "Thinking...", result.Answer)
}
