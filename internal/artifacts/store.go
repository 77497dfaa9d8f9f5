// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package artifacts

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/shelfwise/shelfwise/internal/logging"
	"github.com/shelfwise/shelfwise/internal/rfm"
	"github.com/shelfwise/shelfwise/internal/segment"
)

// Component file names within a bundle version. Every component must be
// present and pass its checksum for a load to succeed.
const (
	componentMeta       = "meta"
	componentScaler     = "scaler"
	componentEncoder    = "encoder"
	componentClusters   = "clusters"
	componentRFM        = "rfm"
	componentOrders     = "orders"
	componentPurchases  = "purchases"
	componentPopularity = "popularity"
)

var componentNames = []string{
	componentMeta, componentScaler, componentEncoder,
	componentClusters, componentRFM, componentOrders,
	componentPurchases, componentPopularity,
}

// artifactFile wraps a gob-encoded payload with its SHA-256 checksum.
type artifactFile struct {
	Checksum string
	Payload  []byte
}

// metaArtifact carries bundle-level metadata.
type metaArtifact struct {
	Version       int
	TrainedAt     time.Time
	ReferenceDate time.Time
}

// popularityArtifact groups the precomputed popularity tables.
type popularityArtifact struct {
	ClusterTop map[int][]string
	OverallTop []string
}

// Store persists bundles as versioned files under a directory. File
// names follow {component}_v{N}.gob.gz.
type Store struct {
	dir string
}

// NewStore opens (creating if needed) an artifact directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's directory.
func (s *Store) Dir() string {
	return s.dir
}

// SaveBundle writes all bundle components as the next version and
// returns the assigned version number. Each file is written to a
// temporary name and renamed, so a crash mid-save never leaves a
// partially written component behind under its final name.
func (s *Store) SaveBundle(b *Bundle) (int, error) {
	latest, err := s.LatestVersion()
	if err != nil {
		return 0, err
	}
	version := latest + 1

	meta := metaArtifact{
		Version:       version,
		TrainedAt:     b.TrainedAt,
		ReferenceDate: b.ReferenceDate,
	}

	components := map[string]interface{}{
		componentScaler:    b.Scaler,
		componentEncoder:   b.Encoder,
		componentClusters:  b.Clusters,
		componentRFM:       b.Records,
		componentOrders:    b.Orders,
		componentPurchases: b.Purchases,
		componentPopularity: popularityArtifact{
			ClusterTop: b.ClusterTop,
			OverallTop: b.OverallTop,
		},
	}

	// Meta is written last: a version is only discoverable once all of
	// its data components exist.
	for _, name := range []string{
		componentScaler, componentEncoder, componentClusters,
		componentRFM, componentOrders, componentPurchases,
		componentPopularity,
	} {
		if err := s.writeComponent(name, version, components[name]); err != nil {
			return 0, err
		}
	}
	if err := s.writeComponent(componentMeta, version, meta); err != nil {
		return 0, err
	}

	b.Version = version

	logging.Info().
		Int("version", version).
		Str("dir", s.dir).
		Int("customers", len(b.Records)).
		Msg("artifact bundle saved")

	return version, nil
}

// LoadBundle reads a bundle. version 0 loads the latest. Any missing
// component file or checksum mismatch is an error; the serving layer
// must never start on a partial bundle.
func (s *Store) LoadBundle(version int) (*Bundle, error) {
	if version == 0 {
		latest, err := s.LatestVersion()
		if err != nil {
			return nil, err
		}
		if latest == 0 {
			return nil, fmt.Errorf("no artifact bundles found in %s", s.dir)
		}
		version = latest
	}

	var meta metaArtifact
	if err := s.readComponent(componentMeta, version, &meta); err != nil {
		return nil, err
	}

	b := &Bundle{
		Version:       meta.Version,
		TrainedAt:     meta.TrainedAt,
		ReferenceDate: meta.ReferenceDate,
	}

	var pop popularityArtifact
	if err := s.readComponent(componentScaler, version, &b.Scaler); err != nil {
		return nil, err
	}
	if err := s.readComponent(componentEncoder, version, &b.Encoder); err != nil {
		return nil, err
	}
	if err := s.readComponent(componentClusters, version, &b.Clusters); err != nil {
		return nil, err
	}
	if err := s.readComponent(componentRFM, version, &b.Records); err != nil {
		return nil, err
	}
	if err := s.readComponent(componentOrders, version, &b.Orders); err != nil {
		return nil, err
	}
	if err := s.readComponent(componentPurchases, version, &b.Purchases); err != nil {
		return nil, err
	}
	if err := s.readComponent(componentPopularity, version, &pop); err != nil {
		return nil, err
	}
	b.ClusterTop = pop.ClusterTop
	b.OverallTop = pop.OverallTop

	if len(b.Records) == 0 {
		return nil, fmt.Errorf("bundle v%d contains no RFM records", version)
	}

	logging.Info().
		Int("version", version).
		Int("customers", len(b.Records)).
		Int("clusters", len(b.ClusterTop)).
		Msg("artifact bundle loaded")

	return b, nil
}

var metaFilePattern = regexp.MustCompile(`^meta_v(\d+)\.gob\.gz$`)

// LatestVersion returns the highest saved version, or 0 when the store
// is empty. Only the meta file marks a version as complete.
func (s *Store) LatestVersion() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read artifacts directory %s: %w", s.dir, err)
	}

	latest := 0
	for _, entry := range entries {
		m := metaFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if v > latest {
			latest = v
		}
	}

	return latest, nil
}

func (s *Store) componentPath(name string, version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_v%d.gob.gz", name, version))
}

// writeComponent gob-encodes v, wraps it with a SHA-256 checksum,
// gzips the result, and atomically places it under its final name.
func (s *Store) writeComponent(name string, version int, v interface{}) error {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	sum := sha256.Sum256(payload.Bytes())
	wrapped := artifactFile{
		Checksum: hex.EncodeToString(sum[:]),
		Payload:  payload.Bytes(),
	}

	path := s.componentPath(name, version)
	tmp, err := os.CreateTemp(s.dir, name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	if err := gob.NewEncoder(gz).Encode(wrapped); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", name, err)
	}

	return nil
}

// readComponent loads and verifies one component file into v.
func (s *Store) readComponent(name string, version int, v interface{}) error {
	path := s.componentPath(name, version)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open artifact %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to decompress artifact %s: %w", path, err)
	}
	defer gz.Close()

	var wrapped artifactFile
	if err := gob.NewDecoder(gz).Decode(&wrapped); err != nil {
		return fmt.Errorf("failed to decode artifact %s: %w", path, err)
	}

	sum := sha256.Sum256(wrapped.Payload)
	if hex.EncodeToString(sum[:]) != wrapped.Checksum {
		return fmt.Errorf("checksum mismatch for artifact %s", path)
	}

	if err := gob.NewDecoder(bytes.NewReader(wrapped.Payload)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", name, err)
	}

	return nil
}

// Verify checks that every component of a version exists and passes
// its checksum without retaining the decoded data.
func (s *Store) Verify(version int) error {
	for _, name := range componentNames {
		var discard interface{}
		switch name {
		case componentMeta:
			discard = &metaArtifact{}
		case componentScaler:
			discard = &segment.Scaler{}
		case componentEncoder:
			discard = &segment.Autoencoder{}
		case componentClusters:
			discard = &segment.KMeans{}
		case componentRFM:
			discard = &[]rfm.Record{}
		case componentOrders:
			discard = &[]OrderLine{}
		case componentPurchases:
			discard = &map[string][]string{}
		case componentPopularity:
			discard = &popularityArtifact{}
		}
		if err := s.readComponent(name, version, discard); err != nil {
			return err
		}
	}
	return nil
}
