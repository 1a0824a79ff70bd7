// =============================================================================
// Invoice Audit - Orchestrator
// =============================================================================
//
// Ties the pipeline together: parse each invoice PDF, assign billing groups,
// enrich the records from the volumes workbook, run the price checks and the
// France volume reconciliation, and assemble the rows handed to the report
// writer.
//
// A broken volumes workbook never fails the run: the load error is surfaced
// on the France rows and in the summary line instead.
//
// =============================================================================

package audit

import (
	"fmt"
	"strings"

	"github.com/smarche/invoice-audit/internal/merger"
	"github.com/smarche/invoice-audit/internal/pdfparser"
	"github.com/smarche/invoice-audit/internal/reconcile"
	"github.com/smarche/invoice-audit/internal/tariff"
	"github.com/smarche/invoice-audit/internal/types"
	"github.com/smarche/invoice-audit/internal/validator"
)

// Summary lines shown in the report header.
const (
	summaryOK     = "Nessun errore: tutte le spedizioni risultano fatturate correttamente."
	summaryErrors = "Risultano degli errori, controllare le fatture evidenziate."
)

// Engine runs the full audit over one or more invoice PDFs.
type Engine struct {
	Parser    *pdfparser.Parser
	Merger    *merger.Merger
	Validator *validator.Validator

	// VolumesPath is the volume-reconciliation workbook; empty disables the
	// France cross-check.
	VolumesPath   string
	VolumesLoader *reconcile.Loader
}

// New wires an Engine around a loaded tariff table.
func New(table *tariff.Table) *Engine {
	return &Engine{
		Parser:        pdfparser.New(table),
		Merger:        merger.New(),
		Validator:     validator.New(table),
		VolumesLoader: reconcile.NewLoader(),
	}
}

// Result is the audit outcome: the report rows in invoice order plus the
// summary line for the report header.
type Result struct {
	Rows    []types.ReportRow
	Summary string

	// Multi is set when more than one PDF was audited; the report then shows
	// the source file per row.
	Multi bool
}

// Run audits the given PDFs and returns the assembled report rows. Parse
// failures are fatal; workbook problems and price discrepancies are findings,
// not errors.
func (e *Engine) Run(pdfPaths []string) (*Result, error) {
	if len(pdfPaths) == 0 {
		return nil, fmt.Errorf("nessun PDF fornito")
	}
	multi := len(pdfPaths) > 1

	var records []types.ShipmentRecord
	for n, path := range pdfPaths {
		parsed, err := e.Parser.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		e.Merger.AssignGroups(parsed)
		if multi {
			// Group ids are per document; prefix them so groups from
			// different PDFs never collide.
			for i := range parsed {
				parsed[i].GroupID = fmt.Sprintf("P%d_%s", n+1, parsed[i].GroupID)
			}
		}
		records = append(records, parsed...)
	}

	return e.assemble(records, multi), nil
}

// assemble runs everything downstream of parsing: document id normalization,
// workbook enrichment, the checks and the report row assembly.
func (e *Engine) assemble(records []types.ShipmentRecord, multi bool) *Result {
	for i := range records {
		r := &records[i]
		r.DocDisplay = r.Doc.Display()
		r.DDT6, _ = r.Doc.Normalize(types.TagDeliveryNote)
		r.FT6, _ = r.Doc.Normalize(types.TagInvoice)
	}

	// Volumes workbook: load before validation, the client name feeds the
	// special tariff rule.
	var index *reconcile.Index
	var loadErr error
	if e.VolumesPath != "" {
		index, loadErr = e.VolumesLoader.Load(e.VolumesPath)
		if loadErr == nil {
			index.FillClientCausal(records)
		}
	}

	rowErrs := e.collectRowErrors(records)
	franceErrs := e.collectFranceErrors(records, index, loadErr)

	rows := make([]types.ReportRow, len(records))
	anyErr := false
	for i := range records {
		r := &records[i]
		rows[i] = types.ReportRow{
			Source:       r.Source,
			Date:         r.Date,
			Ref:          r.Ref,
			Client:       r.Client,
			DestAddress:  r.DestAddress,
			DocDisplay:   r.DocDisplay,
			Causal:       r.Causal,
			Country:      r.Country,
			DestCode:     r.DestCode,
			Zone:         r.Zone,
			Rate:         r.TransportUnit,
			Volume:       r.TransportVolume,
			Quantity:     r.TransportQuantity,
			Amount:       r.TransportTotal,
			Note:         r.Note,
			Errors:       strings.Join(rowErrs[i], "; "),
			FranceErrors: strings.Join(franceErrs[i], "; "),
		}
		rows[i].HasError = rows[i].Errors != ""
		rows[i].HasFranceError = rows[i].FranceErrors != ""
		if rows[i].HasError || rows[i].HasFranceError {
			anyErr = true
		}
	}

	summary := summaryOK
	if anyErr {
		summary = summaryErrors
	}
	if loadErr != nil {
		summary = fmt.Sprintf("Errore lettura excel volumi: %v. %s", loadErr, summary)
	}

	return &Result{Rows: rows, Summary: summary, Multi: multi}
}

// collectRowErrors attributes validation and merge findings to record
// indexes. A finding without refs covers every row of its group.
func (e *Engine) collectRowErrors(records []types.ShipmentRecord) map[int][]string {
	msgs := map[int][]string{}

	for _, verr := range e.Validator.Check(records) {
		for i := range records {
			if records[i].GroupID != verr.GroupID {
				continue
			}
			if verr.Refs == nil || contains(verr.Refs, records[i].Ref) {
				msgs[i] = append(msgs[i], verr.Message)
			}
		}
	}

	for i := range records {
		if m := strings.TrimSpace(records[i].MergeError); m != "" {
			msgs[i] = append(msgs[i], m)
		}
	}
	return msgs
}

// collectFranceErrors runs the volume reconciliation, degrading to a per-row
// load-failure note when the workbook could not be read.
func (e *Engine) collectFranceErrors(records []types.ShipmentRecord, index *reconcile.Index, loadErr error) map[int][]string {
	if e.VolumesPath == "" {
		return nil
	}
	if loadErr != nil {
		msgs := map[int][]string{}
		for i := range records {
			if records[i].Country == "FR" {
				msgs[i] = append(msgs[i], fmt.Sprintf("file excel non compatibile: %v", loadErr))
			}
		}
		return msgs
	}
	return index.Check(records)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
