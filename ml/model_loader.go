package ml

import (
	"fmt"
)

// LoadModel loads the artifact at path for prediction. Legacy artifacts are returned only
// when allowLegacy is set; otherwise they fail with ErrModelCorrupt.
func LoadModel(path string, allowLegacy bool) (Artifact, error) {
	store := NewStore(path)
	if !allowLegacy {
		model, err := store.Load()
		if err != nil {
			return nil, err
		}
		return model, nil
	}

	artifact, err := store.LoadArtifact()
	if err != nil {
		return nil, err
	}
	switch artifact.Format() {
	case FormatNormalized, FormatLegacy:
		return artifact, nil
	default:
		return nil, fmt.Errorf("%s: unsupported format %q: %w", path, artifact.Format(), ErrModelCorrupt)
	}
}
