package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/atelier-storefront/storefront/route"
	"github.com/tanpawarit/atelier-storefront/storefront/search"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Convert between search state and its URL query form",
}

var routeFlags route.RouteState

var routeEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the URL query string for the given refinements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Round-trip through the state so invalid values are dropped the same
		// way a browser URL would be.
		rs := route.Encode(route.Decode(routeFlags))
		fmt.Fprintln(cmd.OutOrStdout(), rs.String())
		return nil
	},
}

var routeDecodeCmd = &cobra.Command{
	Use:   "decode <query-string>",
	Short: "Print the search state encoded in a URL query string",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rs, err := route.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parse query string: %w", err)
		}
		out, err := json.MarshalIndent(struct {
			Route route.RouteState `json:"route"`
			State search.State     `json:"state"`
		}{
			Route: rs,
			State: route.Decode(rs),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	f := routeEncodeCmd.Flags()
	f.StringVar(&routeFlags.Q, "q", "", "free-text query")
	f.IntVar(&routeFlags.Page, "page", 0, "1-based page number")
	f.StringSliceVar(&routeFlags.Brand, "brand", nil, "brand refinement (repeatable)")
	f.StringSliceVar(&routeFlags.Size, "size", nil, "size refinement (repeatable)")
	f.StringSliceVar(&routeFlags.Color, "color", nil, "color refinement (repeatable)")
	f.StringSliceVar(&routeFlags.Gender, "gender", nil, "gender refinement (repeatable)")
	f.StringSliceVar(&routeFlags.Rating, "rating", nil, "rating refinement (repeatable)")
	f.StringSliceVar(&routeFlags.Categories, "categories", nil, "category path, shallowest first")
	f.StringVar(&routeFlags.Price, "price", "", `price range token, e.g. "20:120"`)

	routeCmd.AddCommand(routeEncodeCmd)
	routeCmd.AddCommand(routeDecodeCmd)
}
