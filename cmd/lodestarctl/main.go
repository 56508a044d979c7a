// lodestarctl drives the LodeStar API from the command line.
//
// Usage:
//
//	lodestarctl login
//	lodestarctl calculate --session <id> --state NJ --county Bergen --township Paramus --loan-amount 250000
//	lodestarctl totals --result result.json
package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/susu3304/lodestar-web/internal/aggregate"
	"github.com/susu3304/lodestar-web/internal/config"
	"github.com/susu3304/lodestar-web/internal/lodestar"
	"github.com/susu3304/lodestar-web/internal/logger"
	"github.com/susu3304/lodestar-web/internal/projector"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "lodestarctl",
		Usage:   "Query LodeStar closing cost calculations",
		Version: version,

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 60 * time.Second,
				Usage: "Upstream request timeout",
			},
		},
		Before: func(c *cli.Context) error {
			logger.InitWriter(os.Stderr, c.String("log-level"))
			return nil
		},

		Commands: []*cli.Command{
			loginCommand(),
			calculateCommand(),
			totalsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(c *cli.Context) (*config.Config, *lodestar.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	client := lodestar.NewClient(cfg.TenantURL(), cfg.ClientName, &http.Client{Timeout: c.Duration("timeout")})
	return cfg, client, nil
}

// =============================================================================
// LOGIN COMMAND
// =============================================================================

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in with the configured credentials and print the session id",
		Action: func(c *cli.Context) error {
			cfg, client, err := newClient(c)
			if err != nil {
				return err
			}
			if !cfg.CredentialsConfigured() {
				return fmt.Errorf("credentials not configured: set LODESTAR_USERNAME and LODESTAR_PASSWORD")
			}

			result, resp, err := client.Login(c.Context, cfg.Username, cfg.Password)
			if err != nil {
				return err
			}
			if result == nil {
				msg := resp.Field("error")
				if msg == "" {
					msg = "login failed"
				}
				return fmt.Errorf("%s (HTTP %d)", msg, resp.Status)
			}

			fmt.Printf("client:     %s\n", client.Tenant())
			fmt.Printf("session_id: %s\n", result.SessionID)
			if result.URIPath != "" {
				fmt.Printf("uri_path:   %s\n", result.URIPath)
			}
			return nil
		},
	}
}

// =============================================================================
// CALCULATE COMMAND
// =============================================================================

func calculateCommand() *cli.Command {
	return &cli.Command{
		Name:  "calculate",
		Usage: "Run a closing cost calculation and print the upstream result",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "session",
				Aliases: []string{"s"},
				Usage:   "Session id printed by lodestarctl login",
				EnvVars: []string{"LODESTAR_SESSION_ID"},
			},
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "JSON file with calculation fields (- for stdin)",
			},
			&cli.StringFlag{Name: "state", Usage: "Two-letter state code"},
			&cli.StringFlag{Name: "county", Usage: "County name"},
			&cli.StringFlag{Name: "township", Usage: "Township name"},
			&cli.StringFlag{Name: "purpose", Usage: "Transaction purpose code"},
			&cli.StringFlag{Name: "search-type", Usage: "Search type"},
			&cli.Float64Flag{Name: "purchase-price", Usage: "Purchase price"},
			&cli.Float64Flag{Name: "loan-amount", Usage: "Loan amount"},
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Print party totals instead of the raw result",
			},
		},
		Action: func(c *cli.Context) error {
			fields, err := calculationFields(c)
			if err != nil {
				return err
			}
			for _, key := range []string{"state", "county", "township"} {
				if _, ok := fields.String(key); !ok {
					return fmt.Errorf("missing required field %q", key)
				}
			}

			sid := c.String("session")
			if sid == "" {
				sid, _ = fields.String("session_id")
			}
			if sid == "" {
				return fmt.Errorf("no session: pass --session or run `lodestarctl login` first")
			}

			_, client, err := newClient(c)
			if err != nil {
				return err
			}

			req := projector.Project(fields)
			req.SessionID = sid
			resp, err := client.Call(c.Context, "/closing_cost_calculations.php", http.MethodPost, req, lodestar.ContentTypeJSON)
			if err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("calculation failed (HTTP %d): %s", resp.Status, resp.Field("error"))
			}

			if c.Bool("summary") {
				summary, err := aggregate.Aggregate(resp.Data)
				if err != nil {
					return err
				}
				return printTotals(c.App.Writer, summary)
			}

			var out bytes.Buffer
			if err := json.Indent(&out, resp.Data, "", "  "); err != nil {
				return err
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(c.App.Writer)
			return err
		},
	}
}

// calculationFields merges the --input document with explicit flags; flags win.
func calculationFields(c *cli.Context) (projector.Fields, error) {
	m := map[string]any{}
	if path := c.String("input"); path != "" {
		raw, err := readInput(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("invalid input JSON: %w", err)
		}
	}

	for flag, key := range map[string]string{
		"state":       "state",
		"county":      "county",
		"township":    "township",
		"purpose":     "purpose",
		"search-type": "search_type",
	} {
		if c.IsSet(flag) {
			m[key] = c.String(flag)
		}
	}
	for flag, key := range map[string]string{
		"purchase-price": "purchase_price",
		"loan-amount":    "loan_amount",
	} {
		if c.IsSet(flag) {
			m[key] = c.Float64(flag)
		}
	}
	return projector.FromMap(m), nil
}

// =============================================================================
// TOTALS COMMAND
// =============================================================================

func totalsCommand() *cli.Command {
	return &cli.Command{
		Name:  "totals",
		Usage: "Summarize a saved calculation result by party",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "result",
				Aliases:  []string{"r"},
				Usage:    "Calculation result JSON file (- for stdin)",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			raw, err := readInput(c.String("result"))
			if err != nil {
				return err
			}
			summary, err := aggregate.Aggregate(raw)
			if err != nil {
				return err
			}
			return printTotals(c.App.Writer, summary)
		},
	}
}

func printTotals(w io.Writer, s *aggregate.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	if s.SearchID != "" {
		fmt.Fprintf(tw, "Search ID\t%s\t\n", s.SearchID)
	}
	fmt.Fprintf(tw, "Borrower\t%s\t\n", aggregate.FormatUSD(s.BorrowerTotal))
	fmt.Fprintf(tw, "Seller\t%s\t\n", aggregate.FormatUSD(s.SellerTotal))
	fmt.Fprintf(tw, "Lender\t%s\t\n", aggregate.FormatUSD(s.LenderTotal))
	fmt.Fprintf(tw, "Grand total\t%s\t\n", aggregate.FormatUSD(s.GrandTotal))
	if s.OvernestedTaxes > 0 {
		fmt.Fprintf(tw, "Skipped taxes\t%d\t\n", s.OvernestedTaxes)
	}
	return tw.Flush()
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
