package domain

import "fmt"

// SourceKind describes how a source's manifest is turned into documents.
type SourceKind string

const (
	// SourceKindSeed manifests are link lists; every link is fetched as its own document.
	SourceKindSeed SourceKind = "seed"

	// SourceKindFull manifests are themselves the complete document.
	SourceKindFull SourceKind = "full"
)

// Source identifiers of the built-in documentation sources.
const (
	SourceAppsInToss     = "apps_in_toss"
	SourceTDSReactNative = "tds_react_native"
	SourceTDSMobile      = "tds_mobile"
)

// Source is a named documentation origin. Sources are static configuration.
type Source struct {
	// ID is the stable key used for filtering and cache file names.
	ID string `json:"id"`

	// Name is the human-readable name shown in tool output.
	Name string `json:"name"`

	// ManifestURL is the llms.txt style entry point of the source.
	ManifestURL string `json:"manifest_url"`

	// Kind selects how the manifest is interpreted.
	Kind SourceKind `json:"kind"`
}

// DefaultSources returns the built-in sources in their canonical order.
// Search results and sync outcomes follow this order.
func DefaultSources() []Source {
	return []Source{
		{
			ID:          SourceAppsInToss,
			Name:        "앱인토스",
			ManifestURL: "https://developers-apps-in-toss.toss.im/llms.txt",
			Kind:        SourceKindSeed,
		},
		{
			ID:          SourceTDSReactNative,
			Name:        "TDS React Native",
			ManifestURL: "https://tossmini-docs.toss.im/tds-react-native/llms-full.txt",
			Kind:        SourceKindFull,
		},
		{
			ID:          SourceTDSMobile,
			Name:        "TDS Mobile",
			ManifestURL: "https://tossmini-docs.toss.im/tds-mobile/llms-full.txt",
			Kind:        SourceKindFull,
		},
	}
}

// SourceIDs returns the IDs of the given sources, preserving order.
func SourceIDs(sources []Source) []string {
	ids := make([]string, len(sources))
	for i, s := range sources {
		ids[i] = s.ID
	}
	return ids
}

// LookupSource finds a source by ID.
// Returns an error wrapping ErrInvalidArgument if the ID is not one of sources.
func LookupSource(sources []Source, id string) (Source, error) {
	for _, s := range sources {
		if s.ID == id {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("%w: unknown source %q (expected one of %v)", ErrInvalidArgument, id, SourceIDs(sources))
}

// Validate returns an error if the source definition is incomplete.
func (s Source) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: source ID required", ErrInvalidArgument)
	}
	if s.ManifestURL == "" {
		return fmt.Errorf("%w: source %s: manifest URL required", ErrInvalidArgument, s.ID)
	}
	switch s.Kind {
	case SourceKindSeed, SourceKindFull:
	default:
		return fmt.Errorf("%w: source %s: unknown kind %q", ErrInvalidArgument, s.ID, s.Kind)
	}
	return nil
}
