// File: internal/session/selectors.go
package session

import (
	"github.com/xkilldash9x/nlm-cli/api/schemas"
	"github.com/xkilldash9x/nlm-cli/internal/browser"
	"github.com/xkilldash9x/nlm-cli/internal/search"
)

// Probe chains for the NotebookLM UI. Each chain orders its probes most
// specific first; stable class names and material icon ligatures are
// preferred over display text, which shifts between locales and releases.

var (
	chainChatInput = browser.Chain{
		Name: "chat_input",
		Probes: []browser.Probe{
			browser.CSS(`textarea[aria-label="Query box"]`, "chat query textarea by aria label"),
			browser.CSS(`textarea[placeholder*="Start typing"]`, "chat query textarea by placeholder"),
			browser.CSS(`.query-box textarea`, "textarea inside query box container"),
		},
	}

	chainStopGenerating = browser.Chain{
		Name: "stop_generating",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="Stop"]`, "stop button by aria label"),
			browser.Text("button", "Stop generating", "stop button by text"),
			browser.Text("button", "Stop", "stop button by short text"),
		},
	}

	chainLoading = browser.Chain{
		Name: "loading_indicator",
		Probes: []browser.Probe{
			browser.CSS(`[class*="loading"]`, "generic loading class"),
			browser.CSS(`[class*="spinner"]`, "generic spinner class"),
			browser.CSS(`mat-progress-bar`, "material progress bar"),
		},
	}

	chainAssistantMessage = browser.Chain{
		Name: "assistant_message",
		Probes: []browser.Probe{
			browser.CSS(`[data-message-role="assistant"]`, "assistant message by role attribute"),
			browser.CSS(`[class*="assistant-message"]`, "assistant message by class"),
			browser.CSS(`.response-content`, "response content container"),
		},
	}

	chainChatMessage = browser.Chain{
		Name: "chat_message",
		Probes: []browser.Probe{
			browser.CSS(`[class*="chat-message"]`, "chat message by class"),
			browser.CSS(`[class*="conversation"] [class*="message"]`, "message inside conversation"),
		},
	}

	chainSaveNote = browser.Chain{
		Name: "save_note",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="Save as note"]`, "save-as-note by aria label"),
			browser.Text("button", "Save to note", "save-to-note by text"),
			browser.Text("button", "Save as note", "save-as-note by text"),
		},
	}

	chainAddNote = browser.Chain{
		Name: "add_note",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="Add note"]`, "add note by aria label"),
			browser.Text("button", "Add note", "add note by text"),
		},
	}

	chainNoteInput = browser.Chain{
		Name: "note_input",
		Probes: []browser.Probe{
			browser.CSS(`textarea[placeholder*="note"]`, "note textarea by placeholder"),
			browser.CSS(`[contenteditable="true"]`, "contenteditable note editor"),
		},
	}

	chainNoteSave = browser.Chain{
		Name: "note_save",
		Probes: []browser.Probe{
			browser.Text("button", "Save", "note save by text"),
			browser.CSS(`button[type="submit"]`, "note save by submit type"),
		},
	}

	chainNewNotebook = browser.Chain{
		Name: "new_notebook",
		Probes: []browser.Probe{
			browser.Text("button", "New notebook", "new notebook button by text"),
			browser.CSS(`button[aria-label*="Create"]`, "create button by aria label"),
			browser.Text("button", "Create new", "create button by text"),
		},
	}

	chainNotebookTitleInput = browser.Chain{
		Name: "notebook_title_input",
		Probes: []browser.Probe{
			browser.CSS(`input[aria-label*="title"]`, "title input by aria label"),
			browser.CSS(`input[type="text"]`, "plain text input"),
		},
	}

	chainDialogConfirm = browser.Chain{
		Name: "dialog_confirm",
		Probes: []browser.Probe{
			browser.CSS(`mat-dialog-container button[type="submit"]`, "dialog submit button"),
			browser.Text("button", "Create", "create confirm by text"),
			browser.Text("button", "Confirm", "generic confirm by text"),
			browser.Text("button", "OK", "ok confirm by text"),
		},
	}

	chainNotebookLink = browser.Chain{
		Name: "notebook_link",
		Probes: []browser.Probe{
			browser.CSS(`a[href*="/notebook/"]`, "notebook links on the home page"),
			browser.CSS(`project-button`, "notebook tiles"),
		},
	}

	chainNotebookMenuDelete = browser.Chain{
		Name: "notebook_menu_delete",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="Delete"]`, "delete menu item by aria label"),
			browser.Text("button", "Delete", "delete menu item by text"),
			browser.Text("span", "Delete", "delete menu item label"),
		},
	}

	chainDeleteConfirm = browser.Chain{
		Name: "delete_confirm",
		Probes: []browser.Probe{
			browser.CSS(`mat-dialog-container button[aria-label*="Delete"]`, "dialog delete by aria label"),
			browser.Text("button", "Delete", "dialog delete by text"),
			browser.Text("button", "Confirm", "dialog confirm by text"),
		},
	}

	chainAddSource = browser.Chain{
		Name: "add_source",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="Add source"]`, "add source by aria label"),
			browser.Text("button", "Add source", "add source by text"),
			browser.Text("button", "Upload", "upload by text"),
			browser.CSS(`button[aria-label*="Upload"]`, "upload by aria label"),
		},
	}

	chainFileInput = browser.Chain{
		Name: "file_input",
		Probes: []browser.Probe{
			browser.CSS(`input[type="file"]`, "hidden file input"),
		},
	}

	chainAudioOverview = browser.Chain{
		Name: "audio_overview",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="Audio Overview"]`, "audio overview by aria label"),
			browser.Text("button", "Audio Overview", "audio overview by text"),
			browser.CSS(`button[aria-label*="Audio"]`, "audio button by aria label"),
		},
	}

	chainAudioGenerate = browser.Chain{
		Name: "audio_generate",
		Probes: []browser.Probe{
			browser.Text("button", "Generate", "generate audio by text"),
		},
	}

	chainAudioDownload = browser.Chain{
		Name: "audio_download",
		Probes: []browser.Probe{
			browser.CSS(`a[download]`, "download anchor"),
			browser.CSS(`button[aria-label*="Download"]`, "download by aria label"),
			browser.Text("button", "Download", "download by text"),
		},
	}

	chainSourceItem = browser.Chain{
		Name: "source_item",
		Probes: []browser.Probe{
			browser.CSS(`.source-panel [class*="source-title"]`, "source titles in the panel"),
			browser.CSS(`[class*="source-container"] button`, "source entry buttons"),
			browser.CSS(`mat-chip`, "source chips"),
		},
	}

	chainSourceDelete = browser.Chain{
		Name: "source_delete",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="Delete"]`, "source delete by aria label"),
			browser.Text("button", "Delete source", "source delete by text"),
			browser.Text("button", "Remove", "source remove by text"),
		},
	}

	// Source discovery panel.

	chainDiscoverInput = browser.Chain{
		Name: "discover_input",
		Probes: []browser.Probe{
			browser.CSS(`textarea[aria-label*="Discover sources"]`, "discover textarea by aria label"),
			browser.CSS(`textarea[placeholder*="Search the web"]`, "discover textarea by placeholder"),
			browser.CSS(`textarea[placeholder*="new sources"]`, "discover textarea by placeholder fragment"),
		},
	}

	chainDiscoverSubmit = browser.Chain{
		Name: "discover_submit",
		Probes: []browser.Probe{
			browser.Text("button", "arrow_forward", "submit by material icon ligature"),
			browser.CSS(`button[aria-label*="Submit"]`, "submit by aria label"),
			browser.CSS(`button[aria-label*="Search"]`, "submit by search aria label"),
		},
	}

	chainResearchMode = browser.Chain{
		Name: "research_mode",
		Probes: []browser.Probe{
			browser.Text("button", "search_spark", "mode picker by material icon ligature"),
			browser.CSS(`button[aria-label*="research mode"]`, "mode picker by aria label"),
		},
	}

	chainSourceTypePicker = browser.Chain{
		Name: "source_type_picker",
		Probes: []browser.Probe{
			browser.Text("button", "language", "type picker by material icon ligature"),
			browser.CSS(`button[aria-label*="source type"]`, "type picker by aria label"),
		},
	}

	chainDeepResearch = browser.Chain{
		Name: "deep_research_option",
		Probes: []browser.Probe{
			browser.Text("span", "Deep Research", "deep research menu option"),
			browser.Text("button", "Deep Research", "deep research button"),
		},
	}

	chainFastResearch = browser.Chain{
		Name: "fast_research_option",
		Probes: []browser.Probe{
			browser.Text("span", "Fast Research", "fast research menu option"),
			browser.Text("button", "Fast Research", "fast research button"),
		},
	}

	chainViewResults = browser.Chain{
		Name: "view_results",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="View"]`, "view results by aria label"),
			browser.Text("button", "View", "view results by text"),
		},
	}

	chainResultTitle = browser.Chain{
		Name: "result_title",
		Probes: []browser.Probe{
			browser.CSS(`.shallow-research-title`, "result title class"),
			browser.CSS(`[class*="source-info"]`, "result info class"),
		},
	}

	chainDiscoveryComplete = browser.Chain{
		Name: "discovery_complete",
		Probes: []browser.Probe{
			browser.CSS(`.source-discovery-completed-source-list`, "completed source list"),
			browser.CSS(`[class*="source-discovery-completed"]`, "completed marker class"),
		},
	}

	chainImportResult = browser.Chain{
		Name: "import_result",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="Add"]`, "import by aria label"),
			browser.Text("button", "Add", "import by text"),
			browser.Text("button", "Import", "import by text alternative"),
		},
	}

	chainRemoveResult = browser.Chain{
		Name: "remove_result",
		Probes: []browser.Probe{
			browser.CSS(`button[aria-label*="Remove"]`, "remove result by aria label"),
			browser.Text("button", "Remove", "remove result by text"),
			browser.Text("button", "Delete", "remove result by text alternative"),
		},
	}

	chainAccountEntry = browser.Chain{
		Name: "account_entry",
		Probes: []browser.Probe{
			browser.CSS(`[data-email]`, "account row by data-email"),
			browser.CSS(`[data-identifier]`, "account row by data-identifier"),
			browser.CSS(`div[data-authuser]`, "account row by authuser div"),
			browser.CSS(`li[data-authuser]`, "account row by authuser item"),
		},
	}

	chainLoggedIn = browser.Chain{
		Name: "logged_in",
		Probes: []browser.Probe{
			browser.CSS(`a[href*="/notebook/"]`, "notebook links only render when logged in"),
			browser.Text("button", "New notebook", "new notebook button only renders when logged in"),
			browser.CSS(`project-button`, "notebook tiles only render when logged in"),
		},
	}
)

// sourceTypeOption returns the menu-option chain for a source type filter.
func sourceTypeOption(t schemas.SourceType) browser.Chain {
	switch t {
	case schemas.SourceDrive:
		return browser.Chain{
			Name: "source_type_drive",
			Probes: []browser.Probe{
				browser.Text("span", "Google Drive", "drive option by text"),
				browser.Text("span", "Drive", "drive option by short text"),
			},
		}
	case schemas.SourceYouTube:
		return browser.Chain{
			Name: "source_type_youtube",
			Probes: []browser.Probe{
				browser.Text("span", "YouTube", "youtube option by text"),
			},
		}
	case schemas.SourceLink:
		return browser.Chain{
			Name: "source_type_link",
			Probes: []browser.Probe{
				browser.Text("span", "Link", "link option by text"),
			},
		}
	default:
		return browser.Chain{
			Name: "source_type_web",
			Probes: []browser.Probe{
				browser.Text("span", "Web", "web option by text"),
			},
		}
	}
}

// searchSelectors wires the discovery panel chains into the state machine.
func searchSelectors() search.Selectors {
	return search.Selectors{
		ViewResults:   chainViewResults,
		Input:         chainDiscoverInput,
		RemoveResult:  chainRemoveResult,
		ConfirmRemove: chainDeleteConfirm,
		Completed:     chainDiscoveryComplete,
		ResultTitle:   chainResultTitle,
		Loading:       chainLoading,
	}
}
