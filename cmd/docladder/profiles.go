package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/docladder/internal/pipeline"
)

type profileInfo struct {
	Name string `json:"name"`
	pipeline.Info
}

func profilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "Show the built-in pipeline profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out []profileInfo
			for _, name := range pipeline.ProfileNames() {
				c, err := pipeline.Profile(name)
				if err != nil {
					return err
				}
				out = append(out, profileInfo{Name: name, Info: c.Info()})
			}
			b, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}
