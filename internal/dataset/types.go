// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

// Package dataset loads the retail order workbook into typed records.
//
// The workbook is an xlsx file with two sheets: an orders sheet (one row
// per order line) and a returns sheet (one row per returned order). The
// loader joins returns onto orders, drops columns that carry no signal,
// and derives the features the training pipeline consumes.
package dataset

import "time"

// Order is a single order line from the orders sheet, enriched with
// return status and derived features.
type Order struct {
	OrderID       string
	OrderDate     time.Time
	ShipDate      time.Time
	ShipMode      string
	CustomerID    string
	CustomerName  string
	Segment       string
	City          string
	State         string
	Country       string
	Market        string
	Region        string
	ProductID     string
	Category      string
	SubCategory   string
	ProductName   string
	Sales         float64
	Quantity      int
	Discount      float64
	Profit        float64
	ShippingCost  float64
	OrderPriority string

	// Returned is "Yes" when the order appears in the returns sheet,
	// "No" otherwise.
	Returned string

	// Derived features.
	ShippingDays   int
	OrderYear      int
	OrderMonth     int
	DiscountRate   float64
	SalesCategory  string
	SalesLog       float64
	QuantityLog    float64
	ProfitLog      float64
	ProfitLogValid bool
}

// Table is the loaded and enriched order dataset.
type Table struct {
	Orders []Order

	// ReturnedOrders maps order IDs found in the returns sheet.
	ReturnedOrders map[string]bool
}
