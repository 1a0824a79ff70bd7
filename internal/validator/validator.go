// =============================================================================
// Invoice Audit - Price & Volume Validator
// =============================================================================
//
// Checks every billing group of an invoice against the tariff table:
//
//   merged groups   - the invoiced €/m³ (sum of totals over the ceiled sum of
//                     volumes) must match the tariff for the raw total volume
//   single, vol > 1 - the invoiced quantity must equal the volume ceiled to
//                     0.1, and total / ceiled volume must match the tariff
//   single, vol ≤ 1 - quantity check as above, but the price is the flat
//                     1 m³ minimum: total must equal the tariff itself
//
// Comparisons use an absolute tolerance (default 0.01 €).
//
// =============================================================================

package validator

import (
	"fmt"
	"math"
	"sort"

	"github.com/smarche/invoice-audit/internal/tariff"
	"github.com/smarche/invoice-audit/internal/types"
	"github.com/smarche/invoice-audit/pkg/utils"
)

// DefaultTolerance is the absolute tolerance for every price comparison.
const DefaultTolerance = 0.01

// Validator runs the tariff checks over grouped shipment records.
type Validator struct {
	Table     *tariff.Table
	Tolerance float64
}

// New returns a Validator over the given tariff table with the default
// tolerance.
func New(table *tariff.Table) *Validator {
	return &Validator{Table: table, Tolerance: DefaultTolerance}
}

// Check validates all billing groups and returns the errors found. Records
// are not modified; groups whose members all lack transport amounts (service
// lines) are skipped.
func (v *Validator) Check(records []types.ShipmentRecord) []types.ValidationError {
	var errors []types.ValidationError

	for _, rows := range groupsInOrder(records) {
		var grp []*types.ShipmentRecord
		for _, i := range rows {
			if records[i].Checkable() {
				grp = append(grp, &records[i])
			}
		}
		if len(grp) == 0 {
			continue
		}
		sort.SliceStable(grp, func(a, b int) bool { return grp[a].Ref < grp[b].Ref })

		if len(grp) > 1 {
			errors = append(errors, v.checkMerged(grp)...)
		} else {
			errors = append(errors, v.checkSingle(grp[0])...)
		}
	}
	return errors
}

// checkMerged validates a consolidated group as a single tariff unit.
func (v *Validator) checkMerged(grp []*types.ShipmentRecord) []types.ValidationError {
	head := grp[0]
	country, destCode, zone := tariffAddress(head)

	var volRaw, total float64
	refs := make([]string, 0, len(grp))
	for _, r := range grp {
		volRaw += *r.TransportVolume
		total += *r.TransportTotal
		refs = append(refs, r.Ref)
	}

	volRound := 1.0
	if volRaw >= 1 {
		volRound = utils.CeilToTenth(volRaw)
	}

	rate := v.Table.SelectRate(country, zone, volRaw, head.Client, head.DestAddress)
	if rate == nil {
		// No refs: the finding applies to the whole group.
		return []types.ValidationError{{
			Kind:          types.ErrTariffMissing,
			Message:       "Tariffa mancante per spedizione accorpata",
			GroupID:       head.GroupID,
			Country:       country,
			DestCode:      destCode,
			Zone:          zone,
			RawVolume:     volRaw,
			RoundedVolume: volRound,
		}}
	}

	// The comparison uses the raw quotient; rounding is display only.
	billed := total / volRound
	if math.Abs(billed-*rate) <= v.Tolerance {
		return nil
	}
	found := utils.Round4(billed)
	return []types.ValidationError{{
		Kind: types.ErrMergedRate,
		Message: fmt.Sprintf("Tariffa €/m³ errata: atteso %s, trovato %s",
			utils.FormatFloat(*rate), utils.FormatFloat(found)),
		GroupID:        head.GroupID,
		Country:        country,
		DestCode:       destCode,
		Zone:           zone,
		Refs:           refs,
		ExpectedRate:   *rate,
		FoundRate:      found,
		RawVolume:      volRaw,
		RoundedVolume:  volRound,
		TransportTotal: total,
	}}
}

// checkSingle validates a standalone shipment.
func (v *Validator) checkSingle(r *types.ShipmentRecord) []types.ValidationError {
	country, destCode, zone := tariffAddress(r)

	vol := *r.TransportVolume
	qty := *r.TransportQuantity
	total := *r.TransportTotal
	volRound := utils.CeilToTenth(vol)

	base := func(kind types.ErrorKind, msg string) types.ValidationError {
		return types.ValidationError{
			Kind:           kind,
			Message:        msg,
			GroupID:        r.GroupID,
			Country:        country,
			DestCode:       destCode,
			Zone:           zone,
			Refs:           []string{r.Ref},
			RawVolume:      vol,
			RoundedVolume:  volRound,
			TransportTotal: total,
		}
	}

	var errors []types.ValidationError

	if math.Abs(qty-volRound) > v.Tolerance {
		kind := types.ErrQuantityUnder1
		if vol > 1.0 {
			kind = types.ErrQuantityOver1
		}
		e := base(kind, fmt.Sprintf("Volume arrotondato errato: atteso %s", utils.FormatFloat(volRound)))
		e.ExpectedQty = volRound
		errors = append(errors, e)
	}

	if vol > 1.0 {
		rate := v.Table.SelectRate(country, zone, vol, r.Client, r.DestAddress)
		if rate == nil {
			errors = append(errors, base(types.ErrTariffMissing, "Tariffa mancante"))
			return errors
		}
		billed := total / volRound
		if math.Abs(billed-*rate) > v.Tolerance {
			found := utils.Round4(billed)
			e := base(types.ErrRateOver1, fmt.Sprintf("Tariffa €/m³ errata: atteso %s, trovato %s",
				utils.FormatFloat(*rate), utils.FormatFloat(found)))
			e.ExpectedRate = *rate
			e.FoundRate = found
			errors = append(errors, e)
		}
		return errors
	}

	// Minimum billable volume is 1 m³: the total must equal the 1 m³ rate.
	rate := v.Table.SelectRate(country, zone, 1.0, r.Client, r.DestAddress)
	if rate == nil {
		errors = append(errors, base(types.ErrTariffMissing, "Tariffa mancante"))
		return errors
	}
	if math.Abs(total-*rate) > v.Tolerance {
		e := base(types.ErrPriceUnder1, fmt.Sprintf("Prezzo totale errato: atteso %s, trovato %s",
			utils.FormatFloat(*rate), utils.FormatFloat(total)))
		e.ExpectedPrice = *rate
		e.FoundPrice = total
		e.ExpectedRate = *rate
		errors = append(errors, e)
	}
	return errors
}

// tariffAddress prefers the billing destination (relay-warehouse fallback)
// over the physical one.
func tariffAddress(r *types.ShipmentRecord) (country, destCode, zone string) {
	country, destCode, zone = r.Country, r.DestCode, r.Zone
	if r.TariffCountry != "" {
		country = r.TariffCountry
	}
	if r.TariffDestCode != "" {
		destCode = r.TariffDestCode
	}
	if r.TariffZone != "" {
		zone = r.TariffZone
	}
	return country, destCode, zone
}

// groupsInOrder collects member row indices per group id, in first-appearance
// order of the ids.
func groupsInOrder(records []types.ShipmentRecord) [][]int {
	index := map[string]int{}
	var groups [][]int
	for i := range records {
		id := records[i].GroupID
		g, ok := index[id]
		if !ok {
			g = len(groups)
			index[id] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
