// =============================================================================
// Invoice Audit - Tariff Table
// =============================================================================
//
// The tariff table answers one question: what €/m³ rate applies to a shipment
// given its destination country, tariff zone and volume?
//
// PRICING STRUCTURE (per the carrier's rate workbook):
//   FR, UK, BE, CH : zone -> volume band [0,5] (5,10] (10,15] (15,∞) -> €/m³
//   DE             : zone -> volume band [0,10] (10,∞) -> €/m³
//   IE             : single country-wide €/m³ rate
//   BE, CH, IE     : country-wide pricing, modeled as pseudo-zone "ALL"
//
// Band boundaries are inclusive at the upper bound: 15.0 m³ falls in the
// 10-15 band, 15.01 in the 15+ band.
//
// The table is immutable after load and is passed by value-reference into
// the validator; there is no process-wide tariff state.
//
// =============================================================================

package tariff

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Band keys, matching the workbook's band columns.
const (
	Band0to5   = "0-5"
	Band5to10  = "5-10"
	Band10to15 = "10-15"
	BandOver15 = "15+"
	Band0to10  = "0-10"
	BandOver10 = "10+"
)

// ZoneAll is the pseudo-zone for countries with country-wide pricing.
const ZoneAll = "ALL"

// Rates maps zone -> band -> €/m³. Missing or empty workbook cells are simply
// absent from the inner map.
type Rates map[string]map[string]float64

// SpecialRule is the UK large-volume client override: shipments over
// VolumeOver m³ for the named client are billed at a fixed €/m³ regardless of
// the zone table. The client name is not always available on UK shipments, so
// the rule also fires on a client-name substring or on destination-text
// markers naming the client's carrier.
type SpecialRule struct {
	ClientName      string
	ClientContains  string
	DestContainsAll []string
	Rate            float64
	VolumeOver      float64
}

// DefaultSpecialRule returns the 2025 override as agreed with the carrier.
func DefaultSpecialRule() SpecialRule {
	return SpecialRule{
		ClientName:      "ERCOL FURNITURE LIMITED",
		ClientContains:  "ERCOL",
		DestContainsAll: []string{"EDMONDSON", "SONS"},
		Rate:            121.5,
		VolumeOver:      15,
	}
}

// Table is the loaded tariff reference: per-country rates plus the postal
// code / region -> zone lookups used to resolve destinations.
type Table struct {
	FR Rates
	UK Rates
	DE Rates
	BE Rates
	CH Rates

	// IERate is Ireland's flat €/m³ rate; nil when the sheet cell is empty.
	IERate *float64

	// FRZones maps a French department code ("01".."95", "2A", "2B") to its
	// tariff zone. UKZones maps a UK region letter code, DEZones a 2-digit
	// German postal prefix.
	FRZones map[string]string
	UKZones map[string]string
	DEZones map[string]string

	Special SpecialRule
}

// =============================================================================
// RATE SELECTION
// =============================================================================

// SelectRate resolves the €/m³ rate for a shipment, or nil when no rate
// applies (unsupported country, unresolved zone, empty workbook cell).
//
// client and destText feed the special-client override, which is checked
// before the normal band lookup. The zone lookup is case/format tolerant:
// exact upper-case key first, then the raw key, then title case ("Corsica"
// vs "CORSICA" both resolve).
func (t *Table) SelectRate(country, zone string, volume float64, client, destText string) *float64 {
	c := strings.ToUpper(strings.TrimSpace(country))
	zRaw := strings.TrimSpace(zone)
	zUp := strings.ToUpper(zRaw)

	if t.specialApplies(c, volume, client, destText) {
		rate := t.Special.Rate
		return &rate
	}

	zKey := zUp
	if (c == "BE" || c == "CH" || c == "IE") && zKey == "" {
		zKey = ZoneAll
	}
	if zKey == "" {
		return nil
	}
	if math.IsNaN(volume) {
		return nil
	}

	var rates Rates
	var band string
	switch c {
	case "FR":
		rates, band = t.FR, fourBand(volume)
	case "UK":
		rates, band = t.UK, fourBand(volume)
	case "DE":
		rates, band = t.DE, twoBand(volume)
	case "BE":
		rates, band = t.BE, fourBand(volume)
	case "CH":
		rates, band = t.CH, fourBand(volume)
	case "IE":
		if t.IERate == nil {
			return nil
		}
		rate := *t.IERate
		return &rate
	default:
		return nil
	}

	for _, zk := range []string{zKey, zRaw, titleCase(zRaw)} {
		if zk == "" {
			continue
		}
		if prices, ok := rates[zk]; ok {
			if price, ok := prices[band]; ok {
				return &price
			}
		}
	}
	return nil
}

func (t *Table) specialApplies(country string, volume float64, client, destText string) bool {
	sp := t.Special
	if sp.Rate == 0 || country != "UK" || math.IsNaN(volume) || volume <= sp.VolumeOver {
		return false
	}
	cli := strings.ToUpper(strings.TrimSpace(client))
	dst := strings.ToUpper(strings.TrimSpace(destText))
	if sp.ClientName != "" && cli == strings.ToUpper(strings.TrimSpace(sp.ClientName)) {
		return true
	}
	if sp.ClientContains != "" && cli != "" && strings.Contains(cli, strings.ToUpper(sp.ClientContains)) {
		return true
	}
	if len(sp.DestContainsAll) > 0 && dst != "" {
		all := true
		for _, marker := range sp.DestContainsAll {
			if !strings.Contains(dst, strings.ToUpper(marker)) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// fourBand picks the FR/UK/BE/CH volume band; bounds inclusive on the right.
func fourBand(v float64) string {
	switch {
	case v <= 5:
		return Band0to5
	case v <= 10:
		return Band5to10
	case v <= 15:
		return Band10to15
	default:
		return BandOver15
	}
}

// twoBand picks the DE volume band.
func twoBand(v float64) string {
	if v <= 10 {
		return Band0to10
	}
	return BandOver10
}

func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}

// =============================================================================
// DESTINATION RESOLUTION
// =============================================================================

var (
	countryRe = regexp.MustCompile(`-\s*(FR|GB|UK|DE|BE|IE|CH)\b`)
	frCodeRe  = regexp.MustCompile(`\((\d{2}|2A|2B)\)\s*-\s*FR\b`)
	ukCodeRe  = regexp.MustCompile(`\(([A-Z]{1,2})\)\s*-\s*(GB|UK)\b`)
	deCodeRe  = regexp.MustCompile(`\((\d{2})\)\s*-\s*DE\b`)
)

// DestinationInfo derives (country, destination code, tariff zone) from a
// delivery address. The address ends with a "(code) - CC" fragment; the last
// country token wins when several appear, and GB normalizes to UK.
//
//   FR: 2-digit department (Corsica: 2A/2B) -> zone via FRZones
//   UK: 1-2 region letters -> zone via UKZones; the "BT" prefix is Northern
//       Ireland and is re-routed to the Ireland flat-rate regime
//   DE: 2-digit postal prefix -> zone via DEZones
//   BE/CH/IE: country-wide pricing, no code needed -> zone "ALL"
//
// Unknown country or missing code returns empty strings for the unresolved
// parts; the rate lookup then fails soft (nil rate).
func (t *Table) DestinationInfo(address string) (country, code, zone string) {
	s := strings.ToUpper(strings.ReplaceAll(address, "’", "'"))

	matches := countryRe.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return "", "", ""
	}
	country = matches[len(matches)-1][1]
	if country == "GB" {
		country = "UK"
	}

	switch country {
	case "BE", "CH", "IE":
		return country, "", ZoneAll
	case "FR":
		m := frCodeRe.FindStringSubmatch(s)
		if m == nil {
			return "FR", "", ""
		}
		return "FR", m[1], t.FRZones[m[1]]
	case "UK":
		m := ukCodeRe.FindStringSubmatch(s)
		if m == nil {
			return "UK", "", ""
		}
		region := m[1]
		if strings.HasPrefix(region, "BT") {
			return "IE", "", ZoneAll
		}
		return "UK", region, t.UKZones[region]
	case "DE":
		m := deCodeRe.FindStringSubmatch(s)
		if m == nil {
			return "DE", "", ""
		}
		return "DE", m[1], t.DEZones[m[1]]
	}
	return "", "", ""
}
