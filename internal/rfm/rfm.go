// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package rfm computes per-customer Recency/Frequency/Monetary metrics,
// scores them with quantile binning, and assigns named segments from an
// ordered rule table.
package rfm

import (
	"fmt"
	"sort"
	"time"

	"github.com/shelfwise/shelfwise/internal/dataset"
	"github.com/shelfwise/shelfwise/internal/logging"
)

// Record holds one customer's RFM metrics, quantile scores, and
// segment label.
type Record struct {
	CustomerID string

	// Recency is days between the customer's latest order and the
	// reference date. The reference date is one day after the newest
	// order in the dataset, so Recency is always at least 1.
	Recency int

	// Frequency is the count of distinct order IDs.
	Frequency int

	// Monetary is the total sales amount.
	Monetary float64

	RScore  int
	FScore  int
	MScore  int
	Segment string

	// Cluster is assigned later by the segmentation pipeline. -1 until
	// then.
	Cluster int
}

// Compute aggregates orders into per-customer RFM records. The returned
// reference date is one day after the newest order date; every record's
// Recency is measured against it.
func Compute(orders []dataset.Order) ([]Record, time.Time, error) {
	if len(orders) == 0 {
		return nil, time.Time{}, fmt.Errorf("cannot compute RFM from an empty order set")
	}

	var maxDate time.Time
	for i := range orders {
		if orders[i].OrderDate.After(maxDate) {
			maxDate = orders[i].OrderDate
		}
	}
	reference := maxDate.AddDate(0, 0, 1)

	type agg struct {
		latest   time.Time
		orderIDs map[string]bool
		monetary float64
	}
	byCustomer := make(map[string]*agg)

	for i := range orders {
		o := &orders[i]
		a, ok := byCustomer[o.CustomerID]
		if !ok {
			a = &agg{orderIDs: make(map[string]bool)}
			byCustomer[o.CustomerID] = a
		}
		if o.OrderDate.After(a.latest) {
			a.latest = o.OrderDate
		}
		a.orderIDs[o.OrderID] = true
		a.monetary += o.Sales
	}

	records := make([]Record, 0, len(byCustomer))
	for id, a := range byCustomer {
		records = append(records, Record{
			CustomerID: id,
			Recency:    int(reference.Sub(a.latest).Hours() / 24),
			Frequency:  len(a.orderIDs),
			Monetary:   a.monetary,
			Cluster:    -1,
		})
	}

	// Map iteration order is random; sort for reproducible output.
	sort.Slice(records, func(i, j int) bool {
		return records[i].CustomerID < records[j].CustomerID
	})

	logging.Info().
		Int("customers", len(records)).
		Time("reference_date", reference).
		Msg("computed RFM metrics")

	return records, reference, nil
}
