package services

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"agromarket/internal/models"
	"agromarket/internal/repositories"
	"agromarket/internal/validation"

	"github.com/go-playground/validator/v10"
)

// ImportColumns is the expected CSV header, in any order and case.
var ImportColumns = []string{"company_name", "cnpj", "email", "phone", "city", "state"}

var columnOfField = map[string]string{
	"CompanyName": "company_name",
	"CNPJ":        "cnpj",
	"Email":       "email",
	"Phone":       "phone",
	"City":        "city",
	"State":       "state",
}

// ImportRow is one parsed data row. Line is 1-based and counts the header.
type ImportRow struct {
	Line   int               `json:"line"`
	Client models.Client     `json:"client"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (r ImportRow) Valid() bool { return len(r.Errors) == 0 }

// ImportReport summarizes a CSV import. Valid + Invalid always equals Total.
type ImportReport struct {
	Total    int         `json:"total"`
	Valid    int         `json:"valid"`
	Invalid  int         `json:"invalid"`
	Inserted int         `json:"inserted"`
	DryRun   bool        `json:"dry_run"`
	Rows     []ImportRow `json:"rows"`
}

// ImportService handles a representative's client portfolio and commissions.
type ImportService struct {
	clients     repositories.ClientRepository
	commissions repositories.CommissionRepository
	validate    *validator.Validate
}

// NewImportService creates a new ImportService.
func NewImportService(clients repositories.ClientRepository, commissions repositories.CommissionRepository) *ImportService {
	return &ImportService{clients: clients, commissions: commissions, validate: validation.New()}
}

// detectDelimiter picks ';' when the header line has more of them than commas.
func detectDelimiter(header string) rune {
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

// ParseClients reads and validates a client CSV without touching storage.
func (s *ImportService) ParseClients(r io.Reader, representativeID string) (*ImportReport, error) {
	br := bufio.NewReader(r)
	first, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	first = strings.TrimPrefix(first, "\ufeff")
	if strings.TrimSpace(first) == "" {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidImport)
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(first), br))
	cr.Comma = detectDelimiter(first)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	var missing []string
	for _, col := range ImportColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrInvalidImport, strings.Join(missing, ", "))
	}

	report := &ImportReport{}
	seen := make(map[string]int)
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
			}
			report.Rows = append(report.Rows, ImportRow{Line: perr.StartLine, Errors: map[string]string{"_": perr.Err.Error()}})
			continue
		}
		if isBlank(record) {
			continue
		}
		line, _ := cr.FieldPos(0)

		get := func(col string) string {
			i := index[col]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		client := models.Client{
			RepresentativeID: representativeID,
			CompanyName:      get("company_name"),
			CNPJ:             validation.Digits(get("cnpj")),
			Email:            strings.ToLower(get("email")),
			Phone:            validation.Digits(get("phone")),
			City:             get("city"),
			State:            strings.ToUpper(get("state")),
		}
		row := ImportRow{Line: line, Client: client}
		if err := s.validate.Struct(client); err != nil {
			row.Errors = make(map[string]string)
			for field, msg := range validation.FieldErrors(err) {
				if col, ok := columnOfField[field]; ok {
					field = col
				}
				row.Errors[field] = msg
			}
		}
		if client.CNPJ != "" {
			if prev, dup := seen[client.CNPJ]; dup {
				if row.Errors == nil {
					row.Errors = make(map[string]string)
				}
				row.Errors["cnpj"] = fmt.Sprintf("duplicate of line %d", prev)
			} else {
				seen[client.CNPJ] = line
			}
		}
		report.Rows = append(report.Rows, row)
	}

	report.Total = len(report.Rows)
	for _, row := range report.Rows {
		if row.Valid() {
			report.Valid++
		} else {
			report.Invalid++
		}
	}
	return report, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ImportClients validates the file and, unless dryRun, stores the valid rows.
// Clients the representative already has are skipped, not counted as inserted.
func (s *ImportService) ImportClients(ctx context.Context, r io.Reader, representativeID string, dryRun bool) (*ImportReport, error) {
	if representativeID == "" {
		return nil, fmt.Errorf("%w: representative is required", ErrInvalidImport)
	}
	report, err := s.ParseClients(r, representativeID)
	if err != nil {
		return nil, err
	}
	report.DryRun = dryRun
	if dryRun || report.Valid == 0 {
		return report, nil
	}

	valid := make([]models.Client, 0, report.Valid)
	for _, row := range report.Rows {
		if row.Valid() {
			valid = append(valid, row.Client)
		}
	}
	inserted, err := s.clients.CreateBatch(ctx, valid)
	if err != nil {
		return nil, err
	}
	report.Inserted = inserted
	log.Printf("Imported %d/%d clients for representative %s", inserted, report.Total, representativeID)
	return report, nil
}

// ListClients returns the representative's portfolio.
func (s *ImportService) ListClients(ctx context.Context, representativeID string) ([]models.Client, error) {
	return s.clients.ListByRepresentative(ctx, representativeID)
}

// ListCommissions returns the representative's commissions.
func (s *ImportService) ListCommissions(ctx context.Context, representativeID string) ([]models.Commission, error) {
	return s.commissions.ListByRepresentative(ctx, representativeID)
}
