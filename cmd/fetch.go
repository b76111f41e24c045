package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/peyal-939/kobotest/internal/kobo"
	"github.com/peyal-939/kobotest/internal/storage/postgres"
	"github.com/peyal-939/kobotest/internal/syncer"
)

func newFetchCmd(rt *runtime) *cobra.Command {
	var (
		limit       int
		forceUpdate bool
	)

	cmd := &cobra.Command{
		Use:   "fetch [form_uid]",
		Short: "Fetch submissions from KoboToolbox and sync them to the database",
		Long: `Fetches submission records for a form and upserts them into the local
database. The form UID may be passed as an argument or configured via
KOBO_FORM_UID. Existing records are left untouched unless --force-update
is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formUID := ""
			if len(args) > 0 {
				formUID = args[0]
			}
			return runFetch(cmd, rt, formUID, limit, forceUpdate)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of submissions to fetch (default: all)")
	cmd.Flags().BoolVar(&forceUpdate, "force-update", false, "update existing submissions even if already synced")

	return cmd
}

func runFetch(cmd *cobra.Command, rt *runtime, formUID string, limit int, forceUpdate bool) error {
	ctx := cmd.Context()

	if formUID == "" {
		formUID = rt.cfg.Kobo.FormUID
	}
	if formUID == "" {
		return fmt.Errorf("form UID is required: pass it as an argument or set KOBO_FORM_UID")
	}

	client, err := kobo.NewClient(kobo.ClientConfig{
		Token:   rt.cfg.Kobo.Token,
		BaseURL: rt.cfg.Kobo.BaseURL,
		Timeout: rt.cfg.KoboTimeout(),
	})
	if err != nil {
		return err
	}

	if rt.cfg.DB.DSN == "" {
		return fmt.Errorf("db.dsn is required for fetch")
	}
	store, err := postgres.NewStore(ctx, postgres.StoreConfig{
		DSN:      rt.cfg.DB.DSN,
		MaxConns: rt.cfg.DB.MaxConns,
		MinConns: rt.cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	cmd.Printf("Fetching submissions from form: %s\n", formUID)
	printFormDetails(ctx, cmd, client, formUID)
	if limit <= 0 {
		printAvailableCount(ctx, cmd, client, formUID)
	}

	s := syncer.New(client, store, rt.log, rt.cfg.Kobo.FormUID, rt.cfg.Kobo.PageSize)
	report, err := s.Run(ctx, syncer.Options{
		FormUID: formUID,
		Limit:   limit,
		Force:   forceUpdate,
	})
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Println("\n=== Sync Summary ===")
	cmd.Printf("Created: %d new submissions\n", report.Created)
	if forceUpdate {
		cmd.Printf("Updated: %d\n", report.Updated)
	}
	cmd.Printf("Skipped: %d (already exist)\n", report.Skipped)
	if report.Failed > 0 {
		cmd.Printf("Failed:  %d (see logs)\n", report.Failed)
	}

	if total, err := store.CountByForm(ctx, formUID); err == nil {
		cmd.Printf("\nTotal in database: %d\n", total)
	}
	return nil
}

// printFormDetails is best-effort; an inaccessible asset endpoint should
// not block the sync itself.
func printFormDetails(ctx context.Context, cmd *cobra.Command, client *kobo.Client, formUID string) {
	form, err := client.FormDetails(ctx, formUID)
	if err != nil {
		cmd.Printf("Could not fetch form details: %v\n", err)
		return
	}
	if form.Name != "" {
		cmd.Printf("Form name: %s\n", form.Name)
	}
}

// printAvailableCount reports how many submissions the provider holds for
// the form. Shown only on unlimited runs, best-effort like the form details.
func printAvailableCount(ctx context.Context, cmd *cobra.Command, client *kobo.Client, formUID string) {
	count, err := client.SubmissionCount(ctx, formUID)
	if err != nil {
		cmd.Printf("Could not fetch submission count: %v\n", err)
		return
	}
	cmd.Printf("Total submissions available: %d\n", count)
}
