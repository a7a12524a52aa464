package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phrazzld/jobsearch-api/internal/api"
	"github.com/phrazzld/jobsearch-api/internal/app"
	"github.com/phrazzld/jobsearch-api/internal/domain"
	"github.com/phrazzld/jobsearch-api/internal/service"
)

func newCompaniesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "companies",
		Aliases: []string{"company"},
		Short:   "Manage company records",
	}
	cmd.AddCommand(
		newCompaniesListCmd(opts),
		newCompaniesGetCmd(opts),
		newCompaniesSetCmd(opts),
		newCompaniesImportCmd(opts),
	)
	return cmd
}

func newCompaniesListCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List companies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := e.client()
			if err != nil {
				return err
			}

			companies, err := c.ListCompanies(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing companies: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), companies)
			}

			if len(companies) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No companies found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NAME\tTYPE\tSTAGE\tHQ\tREMOTE")
			for _, co := range companies {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					co.Name, co.Type, co.FundingSeries, co.Headquarters, co.RemotePolicy)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newCompaniesGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <company>",
		Short: "Show one company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := e.client()
			if err != nil {
				return err
			}

			company, err := c.GetCompany(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching company: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), company)
		},
	}
}

func newCompaniesSetCmd(opts *options) *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "set <company> --field key=value...",
		Short: "Create a company or update some of its fields",
		Long: `Merge the given fields into a company record, creating it if needed.
Fields not named keep their stored values. Keys are the JSON field names,
e.g. url, notes, initial_message, eng_size.`,
		Example: `  jobsearchctl companies set Acme --field url=https://acme.test --field eng_size=40`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseCompanyFields(fields)
			if err != nil {
				return err
			}

			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			c, err := e.client()
			if err != nil {
				return err
			}

			company, err := c.UpsertCompany(cmd.Context(), args[0], patch)
			if err != nil {
				return fmt.Errorf("updating company: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), company)
		},
	}
	cmd.Flags().StringArrayVarP(&fields, "field", "f", nil, "Field to set as key=value (repeatable)")
	return cmd
}

// parseCompanyFields turns key=value pairs into a company patch, rejecting
// unknown keys.
func parseCompanyFields(fields []string) (api.CompanyRequest, error) {
	var patch api.CompanyRequest
	if len(fields) == 0 {
		return patch, fmt.Errorf("at least one --field is required")
	}

	values := make(map[string]any, len(fields))
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return patch, fmt.Errorf("invalid field %q, expected key=value", field)
		}
		switch key {
		case "eng_size", "total_size":
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return patch, fmt.Errorf("field %s must be a number: %w", key, err)
			}
			values[key] = n
		default:
			values[key] = value
		}
	}

	raw, err := json.Marshal(values)
	if err != nil {
		return patch, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return patch, fmt.Errorf("invalid company field: %w", err)
	}
	return patch, nil
}

func newCompaniesImportCmd(opts *options) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import companies from a JSON or YAML list",
		Long: `Merge every company in a JSON array or YAML list into the database in
one transaction. Nothing is written if any record is invalid. The format is
taken from the file extension unless --format is given; stdin defaults to
JSON. This command connects to the database directly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			companies, err := readCompanies(cmd, args[0], format)
			if err != nil {
				return err
			}

			e, err := opts.load(cmd)
			if err != nil {
				return err
			}
			stores, err := app.OpenStores(cmd.Context(), e.cfg.Database, e.log)
			if err != nil {
				return err
			}
			defer func() { _ = stores.Close() }()

			svc, err := service.NewCompanyService(stores.Companies, stores.DB, e.log)
			if err != nil {
				return err
			}
			n, err := svc.Import(cmd.Context(), companies)
			if err != nil {
				return fmt.Errorf("importing companies: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d companies.\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Input format: json or yaml")
	return cmd
}

func readCompanies(cmd *cobra.Command, path, format string) ([]*domain.Company, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			format = "yaml"
		default:
			format = "json"
		}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading companies: %w", err)
	}

	switch format {
	case "json":
	case "yaml":
		// Company carries JSON field names only, so YAML is converted to
		// JSON and decoded with the same tags.
		var records []map[string]any
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decoding companies: %w", err)
		}
		if data, err = json.Marshal(records); err != nil {
			return nil, fmt.Errorf("decoding companies: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q, expected json or yaml", format)
	}

	var companies []*domain.Company
	if err := json.Unmarshal(data, &companies); err != nil {
		return nil, fmt.Errorf("decoding companies: %w", err)
	}
	return companies, nil
}
