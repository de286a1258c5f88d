package action

// Stats summarizes a recording for listings and reports.
type Stats struct {
	Total       int
	Clicks      int
	Keystrokes  int
	Credentials int
	Screenshots int
	DurationMS  int64
}

// Summarize counts the action kinds and the recorded wall span.
func Summarize(r *Recording) Stats {
	var s Stats
	s.Total = len(r.Actions)
	for _, a := range r.Actions {
		switch {
		case a.IsClick():
			s.Clicks++
		case a.Type == TypeKeyPress || a.Type == TypeKeyType:
			s.Keystrokes++
		case a.Type == TypeCredentialInput:
			s.Credentials++
		case a.Type == TypeScreenshot:
			s.Screenshots++
		}
	}
	if n := len(r.Actions); n > 0 {
		s.DurationMS = r.Actions[n-1].OffsetMS
	}
	return s
}
