package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yubzen/globetrip/internal/pipeline"
	"github.com/yubzen/globetrip/internal/providers"
	"github.com/yubzen/globetrip/internal/search"
	"github.com/yubzen/globetrip/internal/trip"
)

func resolveKeyName(input string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(input))
	for _, known := range providers.KnownKeyNames {
		if name == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown credential %q (known: %s)", input, strings.Join(providers.KnownKeyNames, ", "))
}

func NewAuthCmd(opts *Options) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage LLM and search API credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthList()
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List credential status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthList()
		},
	}

	var setKey string
	setCmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := resolveKeyName(args[0])
			if err != nil {
				return err
			}

			key := strings.TrimSpace(setKey)
			if key == "" {
				fmt.Printf("Enter API key for %s: ", name)
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return fmt.Errorf("read api key: %w", err)
				}
				key = strings.TrimSpace(line)
			}
			if key == "" {
				return errors.New("api key cannot be empty")
			}

			if err := providers.StoreCredential(name, key); err != nil {
				return fmt.Errorf("store key for %s: %w", name, err)
			}
			fmt.Printf("Stored API key for %s\n", name)
			return nil
		},
	}
	setCmd.Flags().StringVar(&setKey, "key", "", "API key value")

	removeCmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a stored API key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := resolveKeyName(args[0])
			if err != nil {
				return err
			}
			if err := providers.DeleteCredential(name); err != nil {
				return fmt.Errorf("remove key for %s: %w", name, err)
			}
			fmt.Printf("Removed API key for %s\n", name)
			return nil
		},
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Ping every LLM provider that has a key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthCheck(cmd, opts)
		},
	}

	authCmd.AddCommand(listCmd, setCmd, removeCmd, checkCmd)
	return authCmd
}

func runAuthList() error {
	sources := providers.CredentialSources(providers.KnownKeyNames)
	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tSOURCE")
	for _, name := range providers.KnownKeyNames {
		status := "not connected"
		if sources[name] != providers.SourceNone {
			status = "connected"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, status, dash(string(sources[name])))
	}
	return w.Flush()
}

// llmProvider builds the named provider, using the configured base URL when
// name is the configured default.
func llmProvider(opts *Options, name string) (providers.Provider, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = cfg.LLM.Provider
	}
	var baseURL string
	if strings.EqualFold(name, cfg.LLM.Provider) {
		baseURL = cfg.LLM.BaseURL
	}
	return providers.New(providers.Config{Kind: providers.Kind(name), BaseURL: baseURL})
}

func runAuthCheck(cmd *cobra.Command, opts *Options) error {
	sources := providers.CredentialSources(providers.KnownKeyNames)
	var provs []providers.Provider
	for _, name := range providers.KnownKeyNames {
		if sources[name] == providers.SourceNone {
			continue
		}
		p, err := llmProvider(opts, name)
		if err != nil {
			// searchapi is not an LLM provider
			continue
		}
		provs = append(provs, p)
	}
	if len(provs) == 0 {
		fmt.Println("No LLM credentials stored. Run `globetrip auth set <name>`.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tSTATUS\tLATENCY\tERROR")
	for _, st := range providers.CheckAll(cmd.Context(), provs) {
		status := errorStyle.Render("offline")
		if st.IsOnline {
			status = successStyle.Render("online")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Name, status, st.Latency.Round(time.Millisecond), dash(st.ErrorMsg))
	}
	return w.Flush()
}

func NewModelsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "models [provider]",
		Short: "List the models a provider offers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			p, err := llmProvider(opts, name)
			if err != nil {
				return err
			}
			models, err := providers.DiscoverModels(cmd.Context(), p)
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			for _, m := range models {
				if p.Name() == cfg.LLM.Provider && m == cfg.LLM.Model {
					fmt.Println(successStyle.Render("* " + m))
					continue
				}
				fmt.Println("  " + m)
			}
			return nil
		},
	}
}

func NewPlanCmd(opts *Options) *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "plan <session-id>",
		Short: "Run the planning pipelines for a session",
		Long: `Runs visa, flights, accommodation, activities and summary in order.
With --domain only that pipeline runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := rt.DB.ResolveSessionID(ctx, args[0])
			if err != nil {
				return err
			}

			updates := make(chan pipeline.StepUpdate, 16)
			drained := make(chan struct{})
			go func() {
				defer close(drained)
				for u := range updates {
					fmt.Println(renderUpdate(u))
				}
			}()

			p := rt.NewPlanner(updates)
			var run runFunc = p.RunAll
			if domain != "" {
				d, err := trip.ParseDomain(domain)
				if err != nil {
					close(updates)
					<-drained
					return err
				}
				run = domainRunner(p, d)
			}
			outs, runErr := run(ctx, id)
			close(updates)
			<-drained

			fmt.Println()
			if err := writeOutcomes(os.Stdout, outs); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Run a single pipeline (visa, flights, accommodation, activities, summary)")
	return cmd
}

type runFunc func(ctx context.Context, sessionID string) ([]pipeline.Outcome, error)

func domainRunner(p *pipeline.Planner, d trip.Domain) runFunc {
	switch d {
	case trip.DomainVisa:
		return p.RunVisa
	case trip.DomainFlights:
		return p.RunFlights
	case trip.DomainAccommodation:
		return p.RunAccommodation
	case trip.DomainActivities:
		return p.RunActivities
	default:
		return p.RunSummary
	}
}

func NewSessionCmd(opts *Options) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and manage planning sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(cmd, opts)
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionList(cmd, opts)
		},
	}

	var showRuns bool
	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session's full state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := rt.DB.ResolveSessionID(ctx, args[0])
			if err != nil {
				return err
			}
			s, err := rt.DB.LoadSession(ctx, id)
			if err != nil {
				return err
			}
			raw, err := s.MarshalJSON()
			if err != nil {
				return err
			}
			var pretty map[string]any
			if err := json.Unmarshal(raw, &pretty); err != nil {
				return err
			}
			data, err := json.MarshalIndent(pretty, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			if !showRuns {
				return nil
			}

			runs, err := rt.DB.StageRuns(ctx, id)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tDOMAIN\tSTAGE\tSTATUS\tREASON")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Domain, r.Stage, r.Status, dash(r.Reason))
			}
			return w.Flush()
		},
	}
	showCmd.Flags().BoolVar(&showRuns, "runs", false, "Also list recorded stage runs")

	resetCmd := &cobra.Command{
		Use:   "reset <session-id> <domain>",
		Short: "Clear one domain so its pipeline can run again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := trip.ParseDomain(args[1])
			if err != nil {
				return err
			}
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := rt.DB.ResolveSessionID(ctx, args[0])
			if err != nil {
				return err
			}
			s, err := rt.DB.LoadSession(ctx, id)
			if err != nil {
				return err
			}
			if err := s.Reset(d); err != nil {
				return err
			}
			if err := rt.DB.SaveSession(ctx, s); err != nil {
				return err
			}
			fmt.Printf("Reset %s for session %s\n", d, id)
			return nil
		},
	}

	sessionCmd.AddCommand(listCmd, showCmd, resetCmd)
	return sessionCmd
}

func runSessionList(cmd *cobra.Command, opts *Options) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	sessions, err := rt.DB.ListSessions(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUPDATED\tSTATUS\tDESTINATION")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			s.ID, s.UpdatedAt.Local().Format("2006-01-02 15:04"), dash(s.Status), dash(s.Destination))
	}
	return w.Flush()
}

func NewCostsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "costs <session-id>",
		Short: "Show the cost summary for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			id, err := rt.DB.ResolveSessionID(ctx, args[0])
			if err != nil {
				return err
			}
			costs, err := rt.NewPlanner(nil).Costs(ctx, id)
			if err != nil {
				return err
			}
			return writeCosts(os.Stdout, costs)
		},
	}
}

func NewAirportsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "airports <location>",
		Short: "Resolve a city or place to candidate airport codes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			res := rt.Search.Airports(ctx, strings.Join(args, " "))
			if !res.OK() {
				return searchFailure(res.Outcome)
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tCITY\tCOUNTRY")
			for _, a := range res.Candidates {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Code, dash(a.Name), dash(a.City), dash(a.Country))
			}
			return w.Flush()
		},
	}
}

func NewCalendarCmd(opts *Options) *cobra.Command {
	var q search.CalendarQuery
	cmd := &cobra.Command{
		Use:   "calendar <from> <to>",
		Short: "Show the cheapest fares across a date window",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if strings.TrimSpace(q.OutboundDateStart) == "" {
				return errors.New("--depart-from is required")
			}
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			q.DepartureID = strings.ToUpper(strings.TrimSpace(args[0]))
			q.ArrivalID = strings.ToUpper(strings.TrimSpace(args[1]))
			res := rt.Search.Calendar(ctx, q)
			if !res.OK() {
				return searchFailure(res.Outcome)
			}
			entries := append([]search.CalendarEntry(nil), res.Entries...)
			sort.SliceStable(entries, func(i, j int) bool {
				if entries[i].Departure != entries[j].Departure {
					return entries[i].Departure < entries[j].Departure
				}
				return entries[i].Return < entries[j].Return
			})

			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintf(w, "DEPART\tRETURN\tPRICE (%s)\t\n", res.Query.Currency)
			for _, e := range entries {
				price := "-"
				switch {
				case e.HasNoFlights:
					price = "no flights"
				case e.Price != nil:
					price = money(*e.Price)
				}
				mark := ""
				if e.IsLowestPrice {
					mark = successStyle.Render("lowest")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Departure, dash(e.Return), price, mark)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&q.OutboundDateStart, "depart-from", "", "First departure date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.OutboundDateEnd, "depart-to", "", "Last departure date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.ReturnDateStart, "return-from", "", "First return date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&q.ReturnDateEnd, "return-to", "", "Last return date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&q.Adults, "adults", 1, "Number of adult passengers")
	cmd.Flags().StringVar(&q.Currency, "currency", "", "Price currency, defaults to the configured one")
	return cmd
}

func searchFailure(o search.Outcome) error {
	msg := o.Status
	if o.Reason != "" {
		msg += ": " + o.Reason
	}
	if o.Detail != "" {
		msg += " (" + o.Detail + ")"
	}
	if o.Reason == search.ReasonMissingConfiguration {
		msg += "; store a key with `globetrip auth set searchapi`"
	}
	return errors.New("search failed, " + msg)
}

func NewStatsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show session and pipeline statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			st, err := rt.DB.Stats(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 2, 2, 2, ' ', 0)
			fmt.Fprintln(w, "METRIC\tVALUE")
			fmt.Fprintf(w, "DB Path\t%s\n", rt.Config.Defaults.DBPath)
			fmt.Fprintf(w, "Sessions\t%d\n", st.Sessions)
			fmt.Fprintf(w, "Messages\t%d\n", st.Messages)
			fmt.Fprintf(w, "Stage Runs\t%d\n", st.StageRuns)
			for _, k := range sortedKeys(st.RunsByStatus) {
				fmt.Fprintf(w, "Runs %s\t%d\n", k, st.RunsByStatus[k])
			}
			for _, k := range sortedKeys(st.RunsByDomain) {
				fmt.Fprintf(w, "Runs in %s\t%d\n", k, st.RunsByDomain[k])
			}
			return w.Flush()
		},
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
