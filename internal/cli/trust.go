package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	labelGroup  string
	labelEmails []string
)

func init() {
	rootCmd.AddCommand(trustCmd)
	trustCmd.AddCommand(trustAddCmd, trustRemoveCmd, trustViewCmd, trustLabelCmd)

	trustLabelCmd.AddCommand(trustLabelAddCmd, trustLabelRemoveCmd)
	for _, c := range []*cobra.Command{trustLabelAddCmd, trustLabelRemoveCmd} {
		c.Flags().StringVar(&labelGroup, "group", "", "Contact group name")
		c.Flags().StringSliceVar(&labelEmails, "email", nil, "Address to add/remove (repeatable)")
		_ = c.MarkFlagRequired("group")
		_ = c.MarkFlagRequired("email")
	}
}

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage the trusted-recipient list",
}

var trustAddCmd = &cobra.Command{
	Use:   "add <entry>",
	Short: "Add an address or group reference (group:<name>, groupId:<id>)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		added, err := trustManager(cfg, nil).Add(args[0])
		if err != nil {
			return err
		}
		if !added {
			fmt.Println("already present")
			return nil
		}
		fmt.Println("added")
		return nil
	},
}

var trustRemoveCmd = &cobra.Command{
	Use:   "remove <entry>",
	Short: "Remove an entry from the trusted list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		removed, err := trustManager(cfg, nil).Remove(args[0])
		if err != nil {
			return err
		}
		if !removed {
			fmt.Println("not present")
			return nil
		}
		fmt.Println("removed")
		return nil
	},
}

var trustViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the trusted list (addresses masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		entries, err := trustManager(cfg, nil).View()
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var trustLabelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage contact-group membership behind group trust entries",
}

var trustLabelAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add addresses to a contact group, creating it if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		id, err := trustManager(cfg, client).LabelAdd(cmd.Context(), labelGroup, labelEmails)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "group %s: added %d member(s)\n", id, len(labelEmails))
		return nil
	},
}

var trustLabelRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove addresses from a contact group",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		client, err := newClient(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if err := trustManager(cfg, client).LabelRemove(cmd.Context(), labelGroup, labelEmails); err != nil {
			return err
		}
		fmt.Printf("removed %d member(s) from %s\n", len(labelEmails), labelGroup)
		return nil
	},
}
