package proctor

import "strings"

type SignalKind string

const (
	SignalFullscreenExit   SignalKind = "fullscreen_exit"
	SignalVisibilityHidden SignalKind = "visibility_hidden"
	SignalWindowBlur       SignalKind = "window_blur"
	SignalKey              SignalKind = "key"
	SignalContextMenu      SignalKind = "contextmenu"
	SignalCopy             SignalKind = "copy"
	SignalPaste            SignalKind = "paste"
	SignalDevtools         SignalKind = "devtools"
	SignalDragStart        SignalKind = "dragstart"
	SignalDrop             SignalKind = "drop"
)

// Signal is one environment event observed by the test-taker's browser.
type Signal struct {
	Kind SignalKind `json:"kind"`
	Key  *KeyCombo  `json:"key,omitempty"`
}

type KeyCombo struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty"`
}

// Reaction tells the environment what to do with the default action of a signal.
type Reaction int

const (
	// ReactionAllow lets the signal through untouched.
	ReactionAllow Reaction = iota
	// ReactionSuppress blocks the default action without logging anything.
	ReactionSuppress
	// ReactionViolation blocks the default action and logs a violation.
	ReactionViolation
)

var copyShortcutKeys = map[string]bool{"c": true, "v": true, "x": true, "a": true, "s": true, "p": true}

var devtoolsShiftKeys = map[string]bool{"i": true, "j": true, "c": true}

// BlockedShortcut reports whether a key combination is blocked and which violation it maps to.
func BlockedShortcut(k KeyCombo) (ViolationCode, bool) {
	key := strings.ToLower(k.Key)
	mod := k.Ctrl || k.Meta

	switch {
	case key == "printscreen":
		return ViolationPrintScreen, true
	case key == "f12":
		return ViolationDevtoolsOpen, true
	case mod && k.Shift && devtoolsShiftKeys[key]:
		return ViolationDevtoolsOpen, true
	case mod && key == "u":
		return ViolationDevtoolsOpen, true
	case mod && copyShortcutKeys[key]:
		return ViolationCopyPasteShortcut, true
	}
	return "", false
}

// Classify maps a signal to its violation code and reaction. Drag and drop are suppressed
// without a code.
func Classify(sig Signal) (ViolationCode, Reaction) {
	switch sig.Kind {
	case SignalFullscreenExit:
		return ViolationExitFullscreen, ReactionViolation
	case SignalVisibilityHidden:
		return ViolationVisibilityHidden, ReactionViolation
	case SignalWindowBlur:
		return ViolationWindowBlur, ReactionViolation
	case SignalContextMenu:
		return ViolationContextMenu, ReactionViolation
	case SignalCopy:
		return ViolationCopyEvent, ReactionViolation
	case SignalPaste:
		return ViolationPasteEvent, ReactionViolation
	case SignalDevtools:
		return ViolationDevtoolsOpen, ReactionViolation
	case SignalDragStart, SignalDrop:
		return "", ReactionSuppress
	case SignalKey:
		if sig.Key == nil {
			return "", ReactionAllow
		}
		if code, blocked := BlockedShortcut(*sig.Key); blocked {
			return code, ReactionViolation
		}
	}
	return "", ReactionAllow
}
