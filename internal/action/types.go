package action

import "time"

// Type identifies a RecordedAction variant.
type Type string

const (
	TypeMouseClick       Type = "mouse_click"
	TypeMouseDoubleClick Type = "mouse_double_click"
	TypeMouseRightClick  Type = "mouse_right_click"
	TypeMouseScroll      Type = "mouse_scroll"
	TypeKeyPress         Type = "key_press"
	TypeKeyType          Type = "key_type"
	TypeCredentialInput  Type = "credential_input"
	TypeScreenshot       Type = "screenshot"
	TypeWait             Type = "wait"
	TypeOpenURL          Type = "open_url"
)

// ValidTypes defines the allowed action type strings.
var ValidTypes = map[Type]bool{
	TypeMouseClick:       true,
	TypeMouseDoubleClick: true,
	TypeMouseRightClick:  true,
	TypeMouseScroll:      true,
	TypeKeyPress:         true,
	TypeKeyType:          true,
	TypeCredentialInput:  true,
	TypeScreenshot:       true,
	TypeWait:             true,
	TypeOpenURL:          true,
}

// CredentialFieldUsername and CredentialFieldPassword are the only fields a
// credential reference may name.
const (
	CredentialFieldUsername = "username"
	CredentialFieldPassword = "password"
)

// ScreenshotRef is an opaque handle to a captured image artifact.
// Immutable once created; owned by the Recording that references it.
type ScreenshotRef struct {
	Path       string    `json:"path"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	W          int       `json:"w"`
	H          int       `json:"h"`
	Hash       string    `json:"hash,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// CredentialRef names a secret without containing it.
// This pair is the only credential material that may appear in a recording.
type CredentialRef struct {
	Name  string `json:"credential_name"`
	Field string `json:"credential_field"`
}

// RecordedAction is a tagged variant over the recordable event kinds.
// Type selects the variant; only the fields belonging to that variant are set.
//
// Every action carries OffsetMS, milliseconds since recording start, used to
// reconstruct inter-action delay on replay. OffsetMS is strictly
// non-decreasing across a recording's action sequence.
type RecordedAction struct {
	ID       string `json:"id"`
	Type     Type   `json:"type"`
	OffsetMS int64  `json:"offset_ms"`

	// Click and scroll position.
	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`

	// Mouse variants.
	Button string `json:"button,omitempty"`
	DX     int    `json:"dx,omitempty"`
	DY     int    `json:"dy,omitempty"`

	// Keyboard variants.
	Key  string `json:"key,omitempty"`
	Text string `json:"text,omitempty"`

	// credential_input. Never a secret value.
	Credential *CredentialRef `json:"credential,omitempty"`

	// wait.
	DurationMS int64 `json:"duration_ms,omitempty"`

	// open_url.
	URL string `json:"url,omitempty"`

	// Navigation marks an action expected to trigger a page/app transition.
	// open_url actions are implicitly navigation; clicks may opt in.
	Navigation bool `json:"navigation,omitempty"`

	// Visual context for click variants: captured immediately before and
	// after the input was delivered. Either may be nil when capture degraded.
	Before *ScreenshotRef `json:"before_screenshot,omitempty"`
	After  *ScreenshotRef `json:"after_screenshot,omitempty"`

	// Screenshot actions reference their captured artifact.
	Ref *ScreenshotRef `json:"screenshot,omitempty"`
}

// IsClick reports whether the action is a click variant, i.e. subject to
// visual verification before execution.
func (a *RecordedAction) IsClick() bool {
	switch a.Type {
	case TypeMouseClick, TypeMouseDoubleClick, TypeMouseRightClick:
		return true
	}
	return false
}

// IsNavigation reports whether playback should wait for screen stability
// after executing the action.
func (a *RecordedAction) IsNavigation() bool {
	return a.Type == TypeOpenURL || a.Navigation
}

// Recording is an ordered action stream plus metadata. Action order is
// playback order and is not reorderable. The sequence is immutable once the
// recording is finalized except via explicit edit operations that re-stamp
// UpdatedAt.
type Recording struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	URL         string           `json:"url,omitempty"`
	Actions     []RecordedAction `json:"actions"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	// Capture settings in effect when the recording was made.
	CaptureScreenshots bool `json:"capture_screenshots"`
	RegionSize         int  `json:"region_size,omitempty"`

	// Default playback settings. Play options override these.
	SpeedMultiplier   float64 `json:"speed_multiplier,omitempty"`
	VerifyScreenshots bool    `json:"verify_screenshots"`
	MaxRetries        int     `json:"max_retries,omitempty"`
}

// Clone returns a deep copy. Screenshot references are value-copied; the
// image artifacts they point at are shared (they are immutable).
func (r *Recording) Clone() *Recording {
	out := *r
	out.Actions = make([]RecordedAction, len(r.Actions))
	for i, a := range r.Actions {
		c := a
		if a.Credential != nil {
			cred := *a.Credential
			c.Credential = &cred
		}
		if a.Before != nil {
			ref := *a.Before
			c.Before = &ref
		}
		if a.After != nil {
			ref := *a.After
			c.After = &ref
		}
		if a.Ref != nil {
			ref := *a.Ref
			c.Ref = &ref
		}
		out.Actions[i] = c
	}
	return &out
}

// Touch re-stamps UpdatedAt after an explicit edit.
func (r *Recording) Touch(now time.Time) {
	r.UpdatedAt = now.UTC()
}
