package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"partnerd/pkg/db"
	gos3 "partnerd/pkg/s3"
	"partnerd/services/export"
	"partnerd/services/partner"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "partnerctl",
		Short:         "Operator utility for the partner onboarding service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newApproveCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newLedgerCommand())
	return cmd
}

func newApproveCommand() *cobra.Command {
	var (
		apiBaseURL   string
		validityDays int
	)

	cmd := &cobra.Command{
		Use:   "approve <application-id>",
		Short: "Approve an application and issue its terms token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			body := "{}"
			if validityDays > 0 {
				body = fmt.Sprintf(`{"validity_days": %d}`, validityDays)
			}
			endpoint := fmt.Sprintf("%s/v1/applications/%s/approve",
				strings.TrimRight(apiBaseURL, "/"), args[0])
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			return doJSON(req, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&apiBaseURL, "api", "http://localhost:8080", "Base URL of the partner API")
	cmd.Flags().IntVar(&validityDays, "validity-days", 0, "Token lifetime in days (0 uses the server default)")
	return cmd
}

func newValidateCommand() *cobra.Command {
	var apiBaseURL string

	cmd := &cobra.Command{
		Use:   "validate <token>",
		Short: "Check whether a terms token is still usable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			endpoint := fmt.Sprintf("%s/v1/terms?token=%s",
				strings.TrimRight(apiBaseURL, "/"), url.QueryEscape(args[0]))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
			if err != nil {
				return err
			}

			return doJSON(req, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&apiBaseURL, "api", "http://localhost:8080", "Base URL of the partner API")
	return cmd
}

func newLedgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Acceptance ledger export and verification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newLedgerExportCommand())
	cmd.AddCommand(newLedgerVerifyCommand())
	return cmd
}

func newLedgerExportCommand() *cobra.Command {
	var (
		output string
		bucket string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a signed archive of all recorded acceptances",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			dsn := os.Getenv("DB_DSN")
			if dsn == "" {
				return fmt.Errorf("DB_DSN must be set")
			}
			pool, err := db.Open(ctx, dsn)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer pool.Close()

			orm, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
			if err != nil {
				return fmt.Errorf("open orm: %w", err)
			}

			signer, err := export.NewSignerFromEnv()
			if err != nil {
				return err
			}

			cfg := export.BuildConfig{
				Tokens:       partner.NewPostgresTokenStore(pool),
				Applications: partner.NewGormApplicationStore(orm),
				Output:       output,
				Signer:       signer,
				Stdout:       os.Stdout,
			}
			if bucket != "" {
				s3Client, err := gos3.NewClientFromEnv()
				if err != nil {
					return fmt.Errorf("s3 client: %w", err)
				}
				cfg.S3 = s3Client
				cfg.Bucket = bucket
			}

			_, err = export.Build(ctx, cfg)
			return err
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Destination archive file (tar.zst)")
	cmd.Flags().StringVar(&bucket, "bucket", "", "Optional S3 bucket to upload the archive to")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newLedgerVerifyCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the signature and digest of an exported ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			signer, err := export.NewSignerFromEnv()
			if err != nil {
				return err
			}
			manifest, err := export.Verify(ctx, file, signer)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "verified ledger of %d acceptances signed at %s\n",
				manifest.RecordCount, manifest.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the ledger archive")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func doJSON(req *http.Request, out io.Writer) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var pretty map[string]any
	if err := json.Unmarshal(data, &pretty); err == nil {
		formatted, err := json.MarshalIndent(pretty, "", "  ")
		if err == nil {
			fmt.Fprintln(out, string(formatted))
			return nil
		}
	}
	fmt.Fprintln(out, strings.TrimSpace(string(data)))
	return nil
}
