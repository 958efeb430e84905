package pricing

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/goccy/go-json"
)

// priceDocument is one entry of a GetProducts PriceList
type priceDocument struct {
	Product struct {
		ProductFamily string            `json:"productFamily"`
		Attributes    map[string]string `json:"attributes"`
	} `json:"product"`
	Terms struct {
		OnDemand map[string]offerTerm `json:"OnDemand"`
		Reserved map[string]offerTerm `json:"Reserved"`
	} `json:"terms"`
}

type offerTerm struct {
	TermAttributes  map[string]string         `json:"termAttributes"`
	PriceDimensions map[string]priceDimension `json:"priceDimensions"`
}

type priceDimension struct {
	Unit         string            `json:"unit"`
	BeginRange   string            `json:"beginRange"`
	PricePerUnit map[string]string `json:"pricePerUnit"`
}

// parsePriceDocument decodes a price list entry
func parsePriceDocument(priceJSON string) (*priceDocument, error) {
	var doc priceDocument
	if err := json.Unmarshal([]byte(priceJSON), &doc); err != nil {
		return nil, fmt.Errorf("error parsing pricing data: %w", err)
	}
	return &doc, nil
}

// usd parses the USD rate of a dimension
func (d priceDimension) usd() (float64, bool) {
	raw, ok := d.PricePerUnit["USD"]
	if !ok {
		return 0, false
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}

// OnDemandHourly returns the first positive hourly on-demand rate
func (doc *priceDocument) OnDemandHourly() (float64, error) {
	for _, termKey := range slices.Sorted(maps.Keys(doc.Terms.OnDemand)) {
		if price, ok := hourlyRate(doc.Terms.OnDemand[termKey]); ok {
			return price, nil
		}
	}
	return 0, fmt.Errorf("OnDemand hourly price not found")
}

// ReservedHourly returns the hourly rate of the standard, No Upfront offer
// with the given lease length ("1yr" or "3yr")
func (doc *priceDocument) ReservedHourly(lease string) (float64, error) {
	for _, termKey := range slices.Sorted(maps.Keys(doc.Terms.Reserved)) {
		term := doc.Terms.Reserved[termKey]
		attrs := term.TermAttributes
		if attrs["LeaseContractLength"] != lease ||
			attrs["OfferingClass"] != "standard" ||
			attrs["PurchaseOption"] != "No Upfront" {
			continue
		}
		if price, ok := hourlyRate(term); ok {
			return price, nil
		}
	}
	return 0, fmt.Errorf("Reserved %s No Upfront price not found", lease)
}

// StorageRate returns the first-tier per GB-month rate
func (doc *priceDocument) StorageRate() (float64, error) {
	for _, termKey := range slices.Sorted(maps.Keys(doc.Terms.OnDemand)) {
		term := doc.Terms.OnDemand[termKey]
		for _, dimKey := range slices.Sorted(maps.Keys(term.PriceDimensions)) {
			dim := term.PriceDimensions[dimKey]
			if dim.Unit != "GB-Mo" || (dim.BeginRange != "" && dim.BeginRange != "0") {
				continue
			}
			if price, ok := dim.usd(); ok && price > 0 {
				return price, nil
			}
		}
	}
	return 0, fmt.Errorf("storage GB-Mo price not found")
}

func hourlyRate(term offerTerm) (float64, bool) {
	for _, dimKey := range slices.Sorted(maps.Keys(term.PriceDimensions)) {
		dim := term.PriceDimensions[dimKey]
		if dim.Unit != "Hrs" {
			continue
		}
		if price, ok := dim.usd(); ok && price > 0 {
			return price, true
		}
	}
	return 0, false
}
