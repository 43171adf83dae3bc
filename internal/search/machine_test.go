// File: internal/search/machine_test.go
package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/nlm-cli/api/schemas"
	"github.com/xkilldash9x/nlm-cli/internal/browser"
	"github.com/xkilldash9x/nlm-cli/internal/config"
)

// fakePage simulates the discovery panel. Element visibility is keyed by
// probe value so tests can flip the page between states.
type fakePage struct {
	mu      sync.Mutex
	visible map[string]bool
	clicked []string
	keys    []string
	// onClick lets a test mutate page state in response to a click.
	onClick func(probeValue string)
}

func newFakePage() *fakePage {
	return &fakePage{visible: make(map[string]bool)}
}

func (f *fakePage) show(values ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range values {
		f.visible[v] = true
	}
}

func (f *fakePage) set(value string, visible bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible[value] = visible
}

func (f *fakePage) Candidates(_ context.Context, probe browser.Probe) ([]*browser.Element, error) {
	return []*browser.Element{{Probe: probe}}, nil
}

func (f *fakePage) Click(_ context.Context, el *browser.Element, _ bool) error {
	f.mu.Lock()
	f.clicked = append(f.clicked, el.Probe.Value)
	cb := f.onClick
	f.mu.Unlock()
	if cb != nil {
		cb(el.Probe.Value)
	}
	return nil
}

func (f *fakePage) PressKey(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return nil
}

func (f *fakePage) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func (f *fakePage) IsVisible(_ context.Context, el *browser.Element) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible[el.Probe.Value], nil
}

func (f *fakePage) clickedValues() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.clicked...)
}

func testSelectors() Selectors {
	return Selectors{
		ViewResults:   browser.Chain{Name: "view", Probes: []browser.Probe{browser.CSS("view-btn", "")}},
		Input:         browser.Chain{Name: "input", Probes: []browser.Probe{browser.CSS("search-input", "")}},
		RemoveResult:  browser.Chain{Name: "remove", Probes: []browser.Probe{browser.CSS("remove-btn", "")}},
		ConfirmRemove: browser.Chain{Name: "confirm", Probes: []browser.Probe{browser.CSS("confirm-btn", "")}},
		Completed:     browser.Chain{Name: "completed", Probes: []browser.Probe{browser.CSS("completed-marker", "")}},
		ResultTitle:   browser.Chain{Name: "titles", Probes: []browser.Probe{browser.CSS("result-title", "")}},
		Loading:       browser.Chain{Name: "loading", Probes: []browser.Probe{browser.CSS("loading-spinner", "")}},
	}
}

func testConfig() config.SearchConfig {
	return config.SearchConfig{
		FastWait:  200 * time.Millisecond,
		DeepWait:  400 * time.Millisecond,
		Cadence:   10 * time.Millisecond,
		AutoClear: true,
	}
}

func newTestMachine(page Page) *Machine {
	return NewMachine(page, testSelectors(), testConfig(), zap.NewNop())
}

func TestDetect(t *testing.T) {
	testCases := []struct {
		name     string
		visible  []string
		expected schemas.SearchState
	}{
		{"ready", []string{"search-input"}, schemas.SearchReady},
		{"pending", []string{"view-btn"}, schemas.SearchPendingResults},
		{"pending wins over ready", []string{"view-btn", "search-input"}, schemas.SearchPendingResults},
		{"unknown", nil, schemas.SearchUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := newFakePage()
			page.show(tc.visible...)
			state, err := newTestMachine(page).Detect(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.expected, state)
		})
	}
}

func TestEnsureReady_AlreadyReady(t *testing.T) {
	page := newFakePage()
	page.show("search-input")

	require.NoError(t, newTestMachine(page).EnsureReady(context.Background(), false))
	assert.Empty(t, page.clickedValues())
}

func TestEnsureReady_PendingWithoutAutoClear(t *testing.T) {
	page := newFakePage()
	page.show("view-btn")

	err := newTestMachine(page).EnsureReady(context.Background(), false)
	require.Error(t, err)
	assert.True(t, schemas.IsPrecondition(err))

	var pre *schemas.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, schemas.SearchReady, pre.Required)
	assert.Equal(t, schemas.SearchPendingResults, pre.Observed)
}

func TestEnsureReady_AutoClearTransitionsToReady(t *testing.T) {
	page := newFakePage()
	page.show("view-btn", "remove-btn")

	// Removing the last result flips the panel back to READY.
	page.onClick = func(value string) {
		if value == "remove-btn" {
			page.set("remove-btn", false)
			page.set("view-btn", false)
			page.set("search-input", true)
		}
	}

	require.NoError(t, newTestMachine(page).EnsureReady(context.Background(), true))
	assert.Contains(t, page.clickedValues(), "remove-btn")
}

func TestEnsureReady_UnknownState(t *testing.T) {
	page := newFakePage()

	err := newTestMachine(page).EnsureReady(context.Background(), true)
	require.Error(t, err)

	var pre *schemas.PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.Equal(t, schemas.SearchUnknown, pre.Observed)
}

func TestClearPending_NoopWhenReady(t *testing.T) {
	page := newFakePage()
	page.show("search-input")

	require.NoError(t, newTestMachine(page).ClearPending(context.Background()))
	assert.Empty(t, page.clickedValues())
}

func TestClearPending_GivesUpEventually(t *testing.T) {
	page := newFakePage()
	page.show("view-btn") // stuck in pending, nothing removable

	err := newTestMachine(page).ClearPending(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still pending")
}

func TestClearPending_EscapeDismissesStrayDialog(t *testing.T) {
	page := newFakePage()
	page.show("view-btn") // pending with no removable results

	_ = newTestMachine(page).ClearPending(context.Background())

	page.mu.Lock()
	keys := append([]string(nil), page.keys...)
	page.mu.Unlock()
	require.NotEmpty(t, keys)
	assert.Equal(t, "\x1b", keys[0])
}

func TestWaitComplete_MarkerAppears(t *testing.T) {
	page := newFakePage()
	m := newTestMachine(page)

	go func() {
		time.Sleep(50 * time.Millisecond)
		page.show("completed-marker")
	}()

	require.NoError(t, m.WaitComplete(context.Background(), schemas.ModeFast))
}

func TestWaitComplete_ViewButtonSignalsCompletion(t *testing.T) {
	page := newFakePage()
	page.show("view-btn")

	require.NoError(t, newTestMachine(page).WaitComplete(context.Background(), schemas.ModeFast))
}

func TestWaitComplete_LoadingDefersCompletion(t *testing.T) {
	page := newFakePage()
	page.show("loading-spinner", "view-btn")
	m := newTestMachine(page)

	go func() {
		time.Sleep(50 * time.Millisecond)
		page.set("loading-spinner", false)
	}()

	require.NoError(t, m.WaitComplete(context.Background(), schemas.ModeFast))
}

func TestWaitComplete_ResultsCountAsCompletion(t *testing.T) {
	page := newFakePage()
	page.show("result-title")

	require.NoError(t, newTestMachine(page).WaitComplete(context.Background(), schemas.ModeFast))
}

func TestWaitComplete_BudgetExpires(t *testing.T) {
	page := newFakePage()

	err := newTestMachine(page).WaitComplete(context.Background(), schemas.ModeFast)
	require.Error(t, err)
	assert.ErrorIs(t, err, schemas.ErrCompletionTimeout)
}

func TestWaitComplete_CallerCancellation(t *testing.T) {
	page := newFakePage()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestMachine(page).WaitComplete(ctx, schemas.ModeFast)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, schemas.ErrCompletionTimeout)
}
