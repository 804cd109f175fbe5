package manifest

// Profile captures the per-profile compilation overrides a manifest or
// workspace root may declare (e.g. [profile.release]).
type Profile struct {
	Name            string
	OptLevel        string
	DebugInfo       bool
	LTO             string // "off", "thin", "fat"
	CodegenUnits    int
	PanicStrategy   string // "unwind", "abort"
	OverflowChecks  bool
	Incremental     bool
	Strip           string // "none", "debuginfo", "symbols"
	CompilerFlags   []string
	Inherits        string
}

// DefaultProfiles returns the two built-in profiles every manifest has
// even when it declares no [profile] table of its own.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"dev": {
			Name:         "dev",
			OptLevel:     "0",
			DebugInfo:    true,
			LTO:          "off",
			CodegenUnits: 256,
			Incremental:  true,
		},
		"release": {
			Name:         "release",
			OptLevel:     "3",
			DebugInfo:    false,
			LTO:          "off",
			CodegenUnits: 16,
			Incremental:  false,
		},
	}
}
