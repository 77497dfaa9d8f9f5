// Shelfwise - Retail RFM Segmentation and Recommendation Engine
// Copyright 2026 Shelfwise Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shelfwise/shelfwise

package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/shelfwise/shelfwise/internal/logging"
)

// Column headers expected in the orders sheet. Matching is
// case-insensitive and whitespace-trimmed. "Postal Code" and "Row ID"
// are intentionally absent: both are dropped on load.
const (
	colOrderID       = "order id"
	colOrderDate     = "order date"
	colShipDate      = "ship date"
	colShipMode      = "ship mode"
	colCustomerID    = "customer id"
	colCustomerName  = "customer name"
	colSegment       = "segment"
	colCity          = "city"
	colState         = "state"
	colCountry       = "country"
	colMarket        = "market"
	colRegion        = "region"
	colProductID     = "product id"
	colCategory      = "category"
	colSubCategory   = "sub-category"
	colProductName   = "product name"
	colSales         = "sales"
	colQuantity      = "quantity"
	colDiscount      = "discount"
	colProfit        = "profit"
	colShippingCost  = "shipping cost"
	colOrderPriority = "order priority"
	colReturned      = "returned"
)

// requiredColumns must be present in the orders sheet header.
var requiredColumns = []string{
	colOrderID, colOrderDate, colCustomerID, colProductName, colSales,
}

// dateLayouts are tried in order when a date cell is not an Excel serial.
var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"1/2/06",
	"2-Jan-06",
}

// LoadWorkbook reads the orders and returns sheets from the workbook at
// path and produces the enriched order table. A missing file, missing
// sheet, or missing required column is an error; individual malformed
// rows are skipped and counted.
func LoadWorkbook(path, ordersSheet, returnsSheet string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("failed to close workbook")
		}
	}()

	returned, err := loadReturns(f, returnsSheet)
	if err != nil {
		return nil, err
	}

	orders, skipped, err := loadOrders(f, ordersSheet, returned)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("orders sheet %q contains no usable rows", ordersSheet)
	}

	logging.Info().
		Str("workbook", path).
		Int("orders", len(orders)).
		Int("skipped_rows", skipped).
		Int("returned_orders", len(returned)).
		Msg("workbook loaded")

	return &Table{Orders: orders, ReturnedOrders: returned}, nil
}

// loadReturns reads the returns sheet into a set of returned order IDs.
func loadReturns(f *excelize.File, sheet string) (map[string]bool, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read returns sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("returns sheet %q is empty", sheet)
	}

	header := headerIndex(rows[0])
	orderCol, ok := header[colOrderID]
	if !ok {
		return nil, fmt.Errorf("returns sheet %q missing %q column", sheet, colOrderID)
	}

	returned := make(map[string]bool)
	for _, row := range rows[1:] {
		id := cell(row, orderCol)
		if id == "" {
			continue
		}
		returned[id] = true
	}

	return returned, nil
}

// loadOrders reads and enriches the orders sheet. Rows missing any of
// the required identifier columns are skipped.
func loadOrders(f *excelize.File, sheet string, returned map[string]bool) ([]Order, int, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read orders sheet %q: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, 0, fmt.Errorf("orders sheet %q has no data rows", sheet)
	}

	header := headerIndex(rows[0])
	for _, col := range requiredColumns {
		if _, ok := header[col]; !ok {
			return nil, 0, fmt.Errorf("orders sheet %q missing required column %q", sheet, col)
		}
	}

	orders := make([]Order, 0, len(rows)-1)
	skipped := 0

	for i, row := range rows[1:] {
		o, err := parseOrderRow(row, header)
		if err != nil {
			skipped++
			logging.Debug().Int("row", i+2).Err(err).Msg("skipping malformed order row")
			continue
		}

		if returned[o.OrderID] {
			o.Returned = "Yes"
		} else {
			o.Returned = "No"
		}
		deriveFeatures(&o)

		orders = append(orders, o)
	}

	return orders, skipped, nil
}

// parseOrderRow converts one sheet row into an Order.
func parseOrderRow(row []string, header map[string]int) (Order, error) {
	get := func(col string) string {
		idx, ok := header[col]
		if !ok {
			return ""
		}
		return cell(row, idx)
	}

	o := Order{
		OrderID:       get(colOrderID),
		ShipMode:      get(colShipMode),
		CustomerID:    get(colCustomerID),
		CustomerName:  get(colCustomerName),
		Segment:       get(colSegment),
		City:          get(colCity),
		State:         get(colState),
		Country:       get(colCountry),
		Market:        get(colMarket),
		Region:        get(colRegion),
		ProductID:     get(colProductID),
		Category:      get(colCategory),
		SubCategory:   get(colSubCategory),
		ProductName:   get(colProductName),
		OrderPriority: get(colOrderPriority),
	}

	if o.OrderID == "" || o.CustomerID == "" || o.ProductName == "" {
		return Order{}, fmt.Errorf("missing identifier columns")
	}

	var err error
	if o.OrderDate, err = parseDate(get(colOrderDate)); err != nil {
		return Order{}, fmt.Errorf("order date: %w", err)
	}
	if raw := get(colShipDate); raw != "" {
		if o.ShipDate, err = parseDate(raw); err != nil {
			return Order{}, fmt.Errorf("ship date: %w", err)
		}
	}

	if o.Sales, err = parseFloat(get(colSales)); err != nil {
		return Order{}, fmt.Errorf("sales: %w", err)
	}
	o.Quantity = parseIntDefault(get(colQuantity), 0)
	o.Discount, _ = parseFloat(get(colDiscount))
	o.Profit, _ = parseFloat(get(colProfit))
	o.ShippingCost, _ = parseFloat(get(colShippingCost))

	return o, nil
}

// deriveFeatures computes the derived columns the training pipeline uses.
func deriveFeatures(o *Order) {
	if !o.ShipDate.IsZero() {
		o.ShippingDays = int(o.ShipDate.Sub(o.OrderDate).Hours() / 24)
	}
	o.OrderYear = o.OrderDate.Year()
	o.OrderMonth = int(o.OrderDate.Month())

	// Discount rate relative to the discounted price: d / (1 - d).
	if o.Discount < 1 {
		o.DiscountRate = o.Discount / (1 - o.Discount)
	} else {
		o.DiscountRate = math.Inf(1)
	}

	o.SalesCategory = salesCategory(o.Sales)

	o.SalesLog = logCompressed(o.Sales)
	o.QuantityLog = logCompressed(float64(o.Quantity))

	if o.Profit > 0 {
		o.ProfitLog = math.Log1p(o.Profit)
		o.ProfitLogValid = true
	}
}

// machineEpsilon replaces zero values before the log transform so
// downstream consumers never see a degenerate zero bucket.
const machineEpsilon = 2.220446049250313e-16

func logCompressed(v float64) float64 {
	if v == 0 {
		v = machineEpsilon
	}
	return math.Log1p(v)
}

// salesCategory buckets a sale amount into a coarse size label.
// Intervals are right-closed: a sale of exactly 100 is still Low.
func salesCategory(sales float64) string {
	switch {
	case sales <= 100:
		return "Low"
	case sales <= 500:
		return "Medium"
	case sales <= 1000:
		return "High"
	default:
		return "Very High"
	}
}

// headerIndex maps normalized header names to column positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

// cell returns the trimmed cell value at idx, or "" when the row is
// short. GetRows truncates trailing empty cells, so short rows are
// normal.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseDate handles both Excel date serials and common date layouts.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date serial %q: %w", raw, err)
		}
		return t, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func parseFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	raw = strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	return v, nil
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		// Quantity occasionally arrives formatted as a float.
		f, ferr := parseFloat(raw)
		if ferr != nil {
			return def
		}
		return int(f)
	}
	return v
}
