package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/quietmap/internal/app/domain/place"
	"github.com/R3E-Network/quietmap/internal/httputil"
)

const defaultServer = "http://localhost:4000"

type clientOptions struct {
	server  string
	timeout time.Duration
	asJSON  bool
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.server, "server", defaultServer, "base URL of a running quietmap server")
	cmd.PersistentFlags().DurationVar(&o.timeout, "timeout", 10*time.Second, "request timeout")
	cmd.PersistentFlags().BoolVar(&o.asJSON, "json", false, "print raw JSON")
}

func (o *clientOptions) client() *httputil.Client {
	return httputil.NewClient(httputil.ClientConfig{BaseURL: o.server, Timeout: o.timeout})
}

func newPlaceCommand() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:     "place",
		Aliases: []string{"places", "p"},
		Short:   "Create and list places on a running server",
	}
	opts.bind(cmd)
	cmd.AddCommand(newPlaceCreateCommand(opts), newPlaceListCommand(opts))
	return cmd
}

func newPlaceCreateCommand(opts *clientOptions) *cobra.Command {
	var (
		description string
		flags       = map[string]*bool{}
	)
	flagNames := []string{"isStudying", "isDimlyLit", "hasOutlets", "hasWifi", "isPremium", "hasErgonomicChair"}

	cmd := &cobra.Command{
		Use:   "create <name> <latitude> <longitude>",
		Short: "Register a new place",
		Long: `Register a new place.

Examples:
  quietmap place create "Quiet Café" 52.52 13.40 --hasWifi
  quietmap place create Library -33.87 151.21 --description "third floor"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("latitude: %w", err)
			}
			lng, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("longitude: %w", err)
			}

			input := map[string]any{"name": args[0], "latitude": lat, "longitude": lng}
			if cmd.Flags().Changed("description") {
				input["description"] = description
			}
			for _, name := range flagNames {
				if cmd.Flags().Changed(name) {
					input[name] = *flags[name]
				}
			}

			created, err := opts.client().CreatePlace(cmd.Context(), input)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), created)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created place %s (%s)\n", created.ID, created.Name)
			return err
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "free-text description")
	for _, name := range flagNames {
		flags[name] = cmd.Flags().Bool(name, false, "set the "+name+" flag")
	}
	return cmd
}

func newPlaceListCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List places with their average noise level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			places, err := opts.client().GetPlaces(cmd.Context())
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), places)
			}
			return printPlaces(cmd.OutOrStdout(), places)
		},
	}
}

func newMeasurementCommand() *cobra.Command {
	opts := &clientOptions{}
	cmd := &cobra.Command{
		Use:     "measurement",
		Aliases: []string{"m", "measurements"},
		Short:   "Submit noise measurements to a running server",
	}
	opts.bind(cmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "add <place_id> <decibels>",
		Short: "Record a noise measurement for a place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("decibels: %w", err)
			}
			m, err := opts.client().AddMeasurement(cmd.Context(), args[0], value)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), m)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "recorded %.1f dB for place %s (%s)\n", m.Value, m.PlaceID, m.ID)
			return err
		},
	})
	return cmd
}

func printPlaces(w io.Writer, places []place.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLAT\tLNG\tMEASUREMENTS\tAVG dB")
	for _, p := range places {
		avg := "-"
		if p.AverageDecibel != nil {
			avg = strconv.FormatFloat(*p.AverageDecibel, 'f', 1, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.5f\t%.5f\t%d\t%s\n", p.ID, p.Name, p.Latitude, p.Longitude, len(p.Measurements), avg)
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
