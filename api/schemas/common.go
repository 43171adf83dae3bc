package schemas

import "time"

// -- Search Schemas --

// SearchState describes the remote source-discovery subsystem as observed on
// the page. Transitions are driven entirely by probe evidence; the remote
// application is the sole source of truth.
type SearchState string

const (
	// SearchReady means the search input is available and a new search may be
	// submitted.
	SearchReady SearchState = "READY"
	// SearchPendingResults means a prior search produced results that have not
	// yet been imported, removed, or cleared. The remote application rejects
	// new searches in this state.
	SearchPendingResults SearchState = "PENDING_RESULTS"
	// SearchUnknown means the state could not be determined from the page.
	SearchUnknown SearchState = "UNKNOWN"
)

// ResearchMode selects the remote research depth for a source search.
type ResearchMode string

const (
	ModeFast ResearchMode = "fast"
	ModeDeep ResearchMode = "deep"
)

// SourceType selects where the remote application searches for new sources.
type SourceType string

const (
	SourceWeb     SourceType = "web"
	SourceDrive   SourceType = "drive"
	SourceYouTube SourceType = "youtube"
	SourceLink    SourceType = "link"
)

// SearchResult is one entry of a completed source search, together with the
// actions the page currently offers for it.
type SearchResult struct {
	Title     string     `json:"title"`
	Type      SourceType `json:"source_type"`
	CanImport bool       `json:"can_import"`
	CanRemove bool       `json:"can_remove"`
	Checked   bool       `json:"checked"`
}

// SourceInfo is the inspected detail view of a single source.
type SourceInfo struct {
	Title   string `json:"title"`
	Type    string `json:"type"`
	Preview string `json:"preview,omitempty"`
	URL     string `json:"url,omitempty"`
}

// -- Chat Schemas --

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one entry of a notebook's conversation history.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// ChatResult carries the outcome of a chat turn. Complete distinguishes a
// response whose generation was observed to finish from a best-effort partial
// answer returned after the wait budget expired.
type ChatResult struct {
	Answer   string        `json:"answer"`
	Complete bool          `json:"complete"`
	Elapsed  time.Duration `json:"elapsed"`
}

// -- UI Mode --

// UIMode describes which input surface the notebook page currently exposes.
type UIMode string

const (
	ModeChat         UIMode = "chat"
	ModeSourceSearch UIMode = "source_search"
	ModeUnknownUI    UIMode = "unknown"
)
