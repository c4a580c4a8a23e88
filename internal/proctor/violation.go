// Package proctor implements the per-session integrity monitor, the session countdown and the
// single-winner submission guard that together run a timed, proctored assessment session.
package proctor

import "time"

// ViolationCode is the closed vocabulary of integrity violations.
type ViolationCode string

const (
	ViolationExitFullscreen    ViolationCode = "exit_fullscreen"
	ViolationVisibilityHidden  ViolationCode = "visibility_hidden"
	ViolationWindowBlur        ViolationCode = "window_blur"
	ViolationCopyPasteShortcut ViolationCode = "copy_paste_shortcut"
	ViolationDevtoolsOpen      ViolationCode = "devtools_open"
	ViolationPrintScreen       ViolationCode = "print_screen"
	ViolationContextMenu       ViolationCode = "contextmenu"
	ViolationCopyEvent         ViolationCode = "copy_event"
	ViolationPasteEvent        ViolationCode = "paste_event"
	ViolationSmallViewport     ViolationCode = "small_viewport"
)

var violationMessages = map[ViolationCode]string{
	ViolationExitFullscreen:    "You left full-screen mode.",
	ViolationVisibilityHidden:  "You switched tabs or minimized the window.",
	ViolationWindowBlur:        "The assessment window lost focus.",
	ViolationCopyPasteShortcut: "Copy, paste and similar shortcuts are disabled.",
	ViolationDevtoolsOpen:      "Developer tools are not allowed.",
	ViolationPrintScreen:       "Screenshots are not allowed.",
	ViolationContextMenu:       "The context menu is disabled.",
	ViolationCopyEvent:         "Copying content is not allowed.",
	ViolationPasteEvent:        "Pasting content is not allowed.",
	ViolationSmallViewport:     "The browser window is too small.",
}

func (c ViolationCode) Valid() bool {
	_, ok := violationMessages[c]
	return ok
}

func (c ViolationCode) Message() string {
	return violationMessages[c]
}

// Codes lists every known violation code.
func Codes() []ViolationCode {
	return []ViolationCode{
		ViolationExitFullscreen, ViolationVisibilityHidden, ViolationWindowBlur,
		ViolationCopyPasteShortcut, ViolationDevtoolsOpen, ViolationPrintScreen,
		ViolationContextMenu, ViolationCopyEvent, ViolationPasteEvent, ViolationSmallViewport,
	}
}

// Violation is one entry of a session's violation log. Count is the running total at the
// time it was logged.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
	At      time.Time     `json:"timestamp"`
	Count   int           `json:"count"`
}

func NewViolation(code ViolationCode, count int, at time.Time) Violation {
	return Violation{
		Code:    code,
		Message: code.Message(),
		At:      at,
		Count:   count,
	}
}
