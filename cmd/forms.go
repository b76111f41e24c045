package cmd

import (
	"github.com/spf13/cobra"

	"github.com/peyal-939/kobotest/internal/kobo"
)

func newFormsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "forms",
		Short: "List all KoboToolbox forms accessible with your API token",
		Long: `Lists the forms/assets visible to the configured API token. Useful for
finding the form UID to set as KOBO_FORM_UID.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := kobo.NewClient(kobo.ClientConfig{
				Token:   rt.cfg.Kobo.Token,
				BaseURL: rt.cfg.Kobo.BaseURL,
				Timeout: rt.cfg.KoboTimeout(),
			})
			if err != nil {
				return err
			}

			forms, err := client.ListForms(cmd.Context())
			if err != nil {
				return err
			}
			if len(forms) == 0 {
				cmd.Println("No forms found. Check your KOBO_TOKEN and KOBO_BASE_URL.")
				return nil
			}

			cmd.Printf("Found %d form(s):\n\n", len(forms))
			for i, form := range forms {
				deployed := "No"
				if form.HasDeployment {
					deployed = "Yes"
				}
				cmd.Printf("%d. %s\n", i+1, form.Name)
				cmd.Printf("   UID: %s\n", form.UID)
				cmd.Printf("   Type: %s\n", form.AssetType)
				cmd.Printf("   Deployed: %s\n", deployed)
				cmd.Printf("   URL: %s\n\n", form.URL)
			}
			cmd.Println("Use the UID value as KOBO_FORM_UID.")
			return nil
		},
	}
}
