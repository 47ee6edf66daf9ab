package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	rentalapp "github.com/rentdesk/backend/internal/application/rental"
	"github.com/rentdesk/backend/internal/domain/rental"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// feeRateEnv overrides the default municipality fee rate, same key as the server config
const feeRateEnv = "RENTAL_RENTAL_MUNICIPALITY_FEE_RATE"

type options struct {
	file    string
	today   string
	feeRate string
	output  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "rentctl",
		Short:         "Preview rental contract drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.file, "file", "f", "-", "Draft input JSON file, - for stdin")
	root.PersistentFlags().StringVar(&opts.today, "today", "", "Date used for defaults (YYYY-MM-DD), defaults to the current date")
	root.PersistentFlags().StringVar(&opts.feeRate, "fee-rate", "", "Municipality fee rate, e.g. 0.03")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "Output format: text or json")

	root.AddCommand(
		newDeriveCmd(opts),
		newChequesCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

func newDeriveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "derive",
		Short: "Print the financial summary of a draft",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := loadDraft(cmd, opts)
			if err != nil {
				return err
			}
			policy, err := opts.policy()
			if err != nil {
				return err
			}
			summary := policy.Derive(d)
			out := cmd.OutOrStdout()
			if opts.output == "json" {
				return writeJSON(out, struct {
					EndDate *time.Time               `json:"end_date"`
					Summary rental.FinancialSummary `json:"summary"`
				}{d.EndDate(), summary})
			}
			return writeSummary(out, d, summary)
		},
	}
}

func newChequesCmd(opts *options) *cobra.Command {
	var firstNumber string
	cmd := &cobra.Command{
		Use:   "cheques",
		Short: "Print the rent cheque schedule of a draft",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := loadDraft(cmd, opts)
			if err != nil {
				return err
			}
			lines := rental.GenerateRentCheques(d)
			if len(lines) == 0 {
				return errors.New("draft has no start date or duration")
			}
			if firstNumber != "" {
				if lines, err = rental.ApplyCheckNumberEdit(lines, 0, firstNumber); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if opts.output == "json" {
				return writeJSON(out, lines)
			}
			return writeCheques(out, lines)
		},
	}
	cmd.Flags().StringVar(&firstNumber, "first-number", "", "Number of the first cheque; numeric values renumber the rest")
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	var stepName string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "List the validation issues of a draft; exits non-zero when there are any",
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := loadDraft(cmd, opts)
			if err != nil {
				return err
			}
			var issues []rental.ValidationIssue
			if stepName == "" {
				issues = rental.DefaultGate.EvaluateAll(d)
			} else {
				step, ok := rental.ParseStep(stepName)
				if !ok {
					return fmt.Errorf("unknown step %q", stepName)
				}
				issues = rental.DefaultGate.Evaluate(step, d)
			}

			out := cmd.OutOrStdout()
			if opts.output == "json" {
				if err := writeJSON(out, issues); err != nil {
					return err
				}
			} else if err := writeIssues(out, issues); err != nil {
				return err
			}
			if len(issues) > 0 {
				return fmt.Errorf("%d validation issue(s)", len(issues))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stepName, "step", "", "Only check one step: parties, terms, payments, municipal or review")
	return cmd
}

// loadDraft applies the input JSON to a fresh draft starting on opts.today
func loadDraft(cmd *cobra.Command, opts *options) (*rental.ContractDraft, error) {
	var r io.Reader = cmd.InOrStdin()
	if opts.file != "-" {
		f, err := os.Open(opts.file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var in rentalapp.DraftInput
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode draft input: %w", err)
	}

	today := time.Now()
	if opts.today != "" {
		t, err := time.Parse(time.DateOnly, opts.today)
		if err != nil {
			return nil, fmt.Errorf("invalid --today: %w", err)
		}
		today = t
	}

	d := rental.NewContractDraft(uuid.Nil, rental.Date(today))
	if err := in.ApplyTo(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (o *options) policy() (rental.DerivationPolicy, error) {
	raw := o.feeRate
	if raw == "" {
		raw = os.Getenv(feeRateEnv)
	}
	if raw == "" {
		return rental.DefaultPolicy(), nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		return rental.DerivationPolicy{}, fmt.Errorf("invalid fee rate %q", raw)
	}
	return rental.DerivationPolicy{MunicipalityFeeRate: rate}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(3)
}

func writeSummary(w io.Writer, d *rental.ContractDraft, s rental.FinancialSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Start date\t%s\n", d.StartDate.Format(time.DateOnly))
	if end := d.EndDate(); end != nil {
		fmt.Fprintf(tw, "End date\t%s\n", end.Format(time.DateOnly))
	}
	fmt.Fprintf(tw, "Currency\t%s\n", s.Currency)
	rows := []struct {
		label string
		value decimal.Decimal
	}{
		{"Monthly rent", s.MonthlyRent},
		{"Full rent", s.FullRent},
		{"Total discounts", s.TotalDiscounts},
		{"Actual rent", s.ActualRent},
		{"Municipality fees", s.MunicipalityFees},
		{"Total VAT", s.TotalVAT},
		{"Total other tax", s.TotalOtherTax},
		{"Deposit", s.Deposit},
		{"Internet", s.InternetTotal},
		{"Other fees", s.OtherFeesTotal},
		{"Tenant total due", s.TenantTotalDue},
		{"Owner total due", s.OwnerTotalDue},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r.label, amount(r.value))
	}
	return tw.Flush()
}

func writeCheques(w io.Writer, lines []rental.ChequeLine) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNUMBER\tDATE\tAMOUNT")
	for i, l := range lines {
		date := "-"
		if l.Dated() {
			date = l.Date.Format(time.DateOnly)
		}
		number := l.CheckNumber
		if number == "" {
			number = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, number, date, amount(l.Amount))
	}
	return tw.Flush()
}

func writeIssues(w io.Writer, issues []rental.ValidationIssue) error {
	if len(issues) == 0 {
		_, err := fmt.Fprintln(w, "No issues")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tLABEL\tANCHOR")
	for _, is := range issues {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", is.FieldID, is.Label, is.Anchor)
	}
	return tw.Flush()
}
