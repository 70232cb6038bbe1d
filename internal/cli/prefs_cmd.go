package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/sortir/internal/cli/formatter"
	"github.com/alexanderramin/sortir/internal/domain"
	"github.com/alexanderramin/sortir/internal/preferences"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newPrefsCmd(app *App) *cobra.Command {
	var prefsPath string

	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or edit the preference file",
	}
	cmd.PersistentFlags().StringVar(&prefsPath, "prefs", "", "Preferences file (default from config)")

	path := func() string {
		if prefsPath != "" {
			return prefsPath
		}
		return app.Config.PreferencesPath
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the parsed preference rules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := preferences.Load(path())
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPreferences(p, path()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Create or update the preference file interactively",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if !app.interactive() {
					return errors.New("prefs init needs an interactive terminal; edit the JSON file instead")
				}
				current, err := preferences.Load(path())
				if err != nil {
					return err
				}
				v := newPrefsFormValues(current)
				if err := prefsForm(v).Run(); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return nil
					}
					return err
				}
				p, err := v.preferences(current)
				if err != nil {
					return err
				}
				if err := preferences.Save(path(), p); err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPreferences(p, path()))
				return nil
			},
		},
	)

	return cmd
}

// prefsFormValues holds the form's string-typed fields.
type prefsFormValues struct {
	Likes           string
	Boroughs        string
	EventTypes      string
	ExcludePlaces   string
	Audiences       string
	ExcludeChildren bool
	FreeOnly        bool
	MaxPrice        string
}

func newPrefsFormValues(p domain.Preferences) *prefsFormValues {
	hf := p.HardFilters
	v := &prefsFormValues{
		Likes:           p.Likes,
		Boroughs:        strings.Join(hf.BoroughAllow, ", "),
		EventTypes:      strings.Join(hf.EventTypeAllow, ", "),
		ExcludePlaces:   strings.Join(hf.LocationExclude, ", "),
		Audiences:       strings.Join(hf.AudienceAllow, ", "),
		ExcludeChildren: domain.ValueOr(false, hf.ExcludeChildren),
		FreeOnly:        domain.ValueOr(false, hf.FreeOnly),
	}
	if hf.MaxPrice != nil {
		v.MaxPrice = strconv.FormatFloat(*hf.MaxPrice, 'f', -1, 64)
	}
	return v
}

// preferences converts the form back. Unticked toggles and a blank price
// are left unset; children keywords are carried over from base.
func (v *prefsFormValues) preferences(base domain.Preferences) (domain.Preferences, error) {
	hf := domain.HardFilters{
		BoroughAllow:     splitList(v.Boroughs),
		EventTypeAllow:   splitList(v.EventTypes),
		LocationExclude:  splitList(v.ExcludePlaces),
		AudienceAllow:    splitList(v.Audiences),
		ChildrenKeywords: base.HardFilters.ChildrenKeywords,
	}
	if v.ExcludeChildren {
		hf.ExcludeChildren = ptr(true)
	}
	if v.FreeOnly {
		hf.FreeOnly = ptr(true)
	}
	price, err := parseOptionalPrice(v.MaxPrice)
	if err != nil {
		return domain.Preferences{}, err
	}
	hf.MaxPrice = price
	return domain.Preferences{Likes: strings.TrimSpace(v.Likes), HardFilters: hf}, nil
}

func prefsForm(v *prefsFormValues) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("What do you like?").
				Description("Free text used for semantic ranking, e.g. jazz, outdoor cinema, food markets").
				Value(&v.Likes),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Boroughs").
				Description("Comma separated, in order of preference. Blank for any.").
				Placeholder("Le Plateau-Mont-Royal, Verdun").
				Value(&v.Boroughs),
			huh.NewInput().
				Title("Event types").
				Description("Comma separated. Blank for any.").
				Value(&v.EventTypes),
			huh.NewInput().
				Title("Places to exclude").
				Description("Comma separated venue names.").
				Value(&v.ExcludePlaces),
			huh.NewInput().
				Title("Audiences").
				Description("Comma separated. Blank for any.").
				Value(&v.Audiences),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Exclude events aimed at children?").
				Value(&v.ExcludeChildren),
			huh.NewConfirm().
				Title("Only free events?").
				Value(&v.FreeOnly),
			huh.NewInput().
				Title("Maximum price ($)").
				Description("Blank for no limit.").
				Placeholder("25").
				Value(&v.MaxPrice).
				Validate(func(s string) error {
					_, err := parseOptionalPrice(s)
					return err
				}),
		),
	).WithTheme(huhTheme())
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseOptionalPrice(s string) (*float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "$"))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || f < 0 {
		return nil, fmt.Errorf("price must be a non-negative number, got %q", s)
	}
	return &f, nil
}

func ptr[T any](v T) *T { return &v }
