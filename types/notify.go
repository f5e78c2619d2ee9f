package types

// Notification represents a notification message structure.
// It is sent to the desktop helper and, with Type "toast", "status" or "reload", to the local UI hub.
type Notification struct {
	ID                 string         `json:"id,omitempty"`
	Type               string         `json:"type,omitempty"`    // e.g. "message", "calendar_created", "toast"
	Title              string         `json:"title,omitempty"`   // Notification title
	Message            string         `json:"message,omitempty"` // Notification body, lines joined with \n
	Data               map[string]any `json:"data,omitempty"`    // Additional data fields
	Tag                string         `json:"tag,omitempty"`     // Dedup tag, a newer notification replaces one with the same tag
	Icon               string         `json:"icon,omitempty"`
	Image              string         `json:"image,omitempty"`
	Vibrate            []int          `json:"vibrate,omitempty"`
	RequireInteraction bool           `json:"requireInteraction,omitempty"`
	Timestamp          int64          `json:"timestamp,omitempty"` // unix milliseconds
	URL                string         `json:"url,omitempty"`       // app URL focused on click

	// OnClick runs when the user clicks the notification, for providers that report clicks.
	OnClick func() `json:"-"`
}

// UI hub message types.
const (
	NotifyTypeToast  = "toast"
	NotifyTypeStatus = "status"
	NotifyTypeReload = "reload"
)

// Reload signals broadcast after a manual reconnect so views can refetch.
const (
	ReloadRefreshLoad   = "RefreshLoad"
	ReloadCountAdmin    = "ReloadCountAdmin"
	ReloadCountEmployee = "ReloadCountEmployee"
)

// ReloadSignals is the fixed set broadcast on manual retry.
var ReloadSignals = []string{ReloadRefreshLoad, ReloadCountAdmin, ReloadCountEmployee}

// Permission is the tri-state desktop notification permission.
type Permission string

const (
	PermissionDefault Permission = "default" // not asked yet
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission maps free text to a Permission, defaulting to PermissionDefault.
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted:
		return PermissionGranted
	case PermissionDenied:
		return PermissionDenied
	}
	return PermissionDefault
}
