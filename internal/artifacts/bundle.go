// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package artifacts assembles and persists the trained model bundle.
//
// A bundle is everything the serving layer needs: the fitted
// segmentation model, scored RFM records with cluster assignments,
// per-customer purchase history, and precomputed popularity tables.
// Bundles are stored as versioned, checksummed, gzip-compressed gob
// files; loading fails loudly on any missing or corrupt component.
package artifacts

import (
	"fmt"
	"sort"
	"time"

	"github.com/shelfwise/shelfwise/internal/dataset"
	"github.com/shelfwise/shelfwise/internal/rfm"
	"github.com/shelfwise/shelfwise/internal/segment"
)

// Bundle is one complete trained artifact set.
type Bundle struct {
	// Version is assigned by the store on save; 0 for unsaved bundles.
	Version int

	TrainedAt     time.Time
	ReferenceDate time.Time

	Scaler   *segment.Scaler
	Encoder  *segment.Autoencoder
	Clusters *segment.KMeans

	// Records are the scored, clustered RFM records, sorted by
	// customer ID.
	Records []rfm.Record

	// Orders is the clustered order table: one line per order line,
	// annotated with the buying customer's cluster.
	Orders []OrderLine

	// Purchases maps customer ID to the sorted distinct product names
	// the customer has bought.
	Purchases map[string][]string

	// ClusterTop maps cluster index to its most purchased products,
	// ordered by purchase count descending, then name ascending.
	ClusterTop map[int][]string

	// OverallTop holds the globally most purchased products in the
	// same order.
	OverallTop []string
}

// OrderLine is one order line with its customer's cluster attached.
// Cluster is -1 for order lines whose customer has no RFM record.
type OrderLine struct {
	OrderID     string
	CustomerID  string
	ProductName string
	Cluster     int
}

// BuildOptions caps the popularity tables.
type BuildOptions struct {
	ClusterTopSize int
	OverallTopSize int
}

// Build assembles a bundle from clustered RFM records and the raw
// orders they were trained on. Records must already carry cluster
// assignments.
func Build(records []rfm.Record, model *segment.Model, orders []dataset.Order, referenceDate time.Time, opts BuildOptions) (*Bundle, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot build a bundle from empty records")
	}
	if model == nil {
		return nil, fmt.Errorf("cannot build a bundle without a fitted model")
	}
	if opts.ClusterTopSize < 1 || opts.OverallTopSize < 1 {
		return nil, fmt.Errorf("popularity table sizes must be positive: %+v", opts)
	}

	clusterOf := make(map[string]int, len(records))
	for i := range records {
		clusterOf[records[i].CustomerID] = records[i].Cluster
	}

	purchases := make(map[string]map[string]bool)
	overallCounts := make(map[string]int)
	clusterCounts := make(map[int]map[string]int)
	lines := make([]OrderLine, 0, len(orders))

	for i := range orders {
		o := &orders[i]
		if o.ProductName == "" {
			continue
		}

		cluster, known := clusterOf[o.CustomerID]
		if !known {
			cluster = -1
		}
		lines = append(lines, OrderLine{
			OrderID:     o.OrderID,
			CustomerID:  o.CustomerID,
			ProductName: o.ProductName,
			Cluster:     cluster,
		})

		set, ok := purchases[o.CustomerID]
		if !ok {
			set = make(map[string]bool)
			purchases[o.CustomerID] = set
		}
		set[o.ProductName] = true

		overallCounts[o.ProductName]++

		if !known {
			continue
		}
		counts, ok := clusterCounts[cluster]
		if !ok {
			counts = make(map[string]int)
			clusterCounts[cluster] = counts
		}
		counts[o.ProductName]++
	}

	b := &Bundle{
		TrainedAt:     time.Now().UTC(),
		ReferenceDate: referenceDate,
		Scaler:        model.Scaler,
		Encoder:       model.Encoder,
		Clusters:      model.Clusters,
		Records:       records,
		Orders:        lines,
		Purchases:     make(map[string][]string, len(purchases)),
		ClusterTop:    make(map[int][]string, len(clusterCounts)),
		OverallTop:    rankProducts(overallCounts, opts.OverallTopSize),
	}

	for id, set := range purchases {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		b.Purchases[id] = names
	}

	for cluster, counts := range clusterCounts {
		b.ClusterTop[cluster] = rankProducts(counts, opts.ClusterTopSize)
	}

	return b, nil
}

// rankProducts orders products by purchase count descending, breaking
// ties by name ascending, and truncates to limit.
func rankProducts(counts map[string]int, limit int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})

	if len(names) > limit {
		names = names[:limit]
	}
	return names
}

// Record returns the RFM record for a customer ID, or nil when the
// customer was not in the training data. Records are sorted by
// customer ID, so lookup is a binary search.
func (b *Bundle) Record(customerID string) *rfm.Record {
	idx := sort.Search(len(b.Records), func(i int) bool {
		return b.Records[i].CustomerID >= customerID
	})
	if idx < len(b.Records) && b.Records[idx].CustomerID == customerID {
		return &b.Records[idx]
	}
	return nil
}
