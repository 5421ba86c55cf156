package bundle

import (
	"bytes"
	"encoding/json"

	"soilsense/internal/ml/kmeans"
	"soilsense/internal/ml/profile"
	"soilsense/internal/ml/scaler"
	"soilsense/internal/ml/selection"
	"soilsense/pkg/errors"
)

// Artifact names. The file store uses them as file names, the Redis store as hash fields.
const (
	ArtifactManifest = "manifest.json"
	ArtifactScaler   = "scaler.json"
	ArtifactModel    = "model.json"
	ArtifactProfiles = "profiles.json"
	ArtifactReport   = "report.json"
	ArtifactCenters  = "cluster_centers.csv"
)

// Encode serializes every artifact of b, keyed by artifact name
func Encode(b *Bundle) (map[string][]byte, error) {
	out := make(map[string][]byte, 6)

	pieces := []struct {
		name  string
		value any
	}{
		{ArtifactManifest, b},
		{ArtifactScaler, b.Scaler},
		{ArtifactModel, b.Model},
		{ArtifactProfiles, b.Profiles},
	}
	if b.Report != nil {
		pieces = append(pieces, struct {
			name  string
			value any
		}{ArtifactReport, b.Report})
	}

	for _, p := range pieces {
		data, err := json.MarshalIndent(p.value, "", "  ")
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s", p.name)
		}
		out[p.name] = data
	}

	var centers bytes.Buffer
	if err := WriteCentersCSV(&centers, b); err != nil {
		return nil, err
	}
	out[ArtifactCenters] = centers.Bytes()

	return out, nil
}

// Decode rebuilds and validates a bundle from encoded artifacts.
// The centers table is derived output and is not read back.
func Decode(artifacts map[string][]byte) (*Bundle, error) {
	b := &Bundle{}
	if err := decodeArtifact(artifacts, ArtifactManifest, b); err != nil {
		return nil, err
	}

	b.Scaler = &scaler.Scaler{}
	if err := decodeArtifact(artifacts, ArtifactScaler, b.Scaler); err != nil {
		return nil, err
	}
	b.Model = &kmeans.Model{}
	if err := decodeArtifact(artifacts, ArtifactModel, b.Model); err != nil {
		return nil, err
	}
	b.Profiles = &profile.Set{}
	if err := decodeArtifact(artifacts, ArtifactProfiles, b.Profiles); err != nil {
		return nil, err
	}
	if _, ok := artifacts[ArtifactReport]; ok {
		b.Report = &selection.Report{}
		if err := decodeArtifact(artifacts, ArtifactReport, b.Report); err != nil {
			return nil, err
		}
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeArtifact(artifacts map[string][]byte, name string, v any) error {
	data, ok := artifacts[name]
	if !ok {
		return errors.NewArtifactMismatch("artifact %s is missing", name)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s", name)
	}
	return nil
}
