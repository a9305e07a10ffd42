package host

// Permission tags the numeric catalog declares (spec.md #4.3), beyond
// vm.DefaultAllowed. These are the values --perm accepts on the CLI.
const (
	PermTimeGetTime   = "time_get_time"
	PermWindowDisplay = "window_display"
	PermAudioOutput   = "audio_output"
)

// AllPermissions lists every grantable tag. --perm takes tags by name
// only; it has no "all" shorthand.
var AllPermissions = []string{PermTimeGetTime, PermWindowDisplay, PermAudioOutput}
