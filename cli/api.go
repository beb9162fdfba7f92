package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/docsurgery/client"
)

func newAPICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Talk to the case management API",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Print the API health check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.apiClient()
			if err != nil {
				return err
			}
			status, err := c.HealthCheck(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	})

	var (
		fields   []string
		keysOnly bool
	)
	get := &cobra.Command{
		Use:   "get <endpoint> <id>",
		Short: "Fetch one object, e.g. get submissions 42",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.apiClient()
			if err != nil {
				return err
			}
			res, err := c.Resource(args[0])
			if err != nil {
				return err
			}
			o := res.Get(args[1], fields...)
			if keysOnly {
				keys, err := o.Keys(cmd.Context())
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				return nil
			}
			if _, err := o.Data(cmd.Context()); err != nil {
				return err
			}
			b, err := json.MarshalIndent(o, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	get.Flags().StringSliceVar(&fields, "fields", nil, "fields to return")
	get.Flags().BoolVar(&keysOnly, "keys", false, "print only the top-level field names")
	cmd.AddCommand(get)
	return cmd
}

func (a *app) apiClient() (*client.Client, error) {
	return client.New(client.ConfigFrom(a.cfg.API, a.logger.Named("api")))
}
