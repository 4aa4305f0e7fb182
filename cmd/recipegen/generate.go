package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alchemorsel/recipegen/internal/application/generation"
	"github.com/alchemorsel/recipegen/internal/domain/recipe"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ai"
	"github.com/alchemorsel/recipegen/internal/infrastructure/ai/relay"
	"github.com/alchemorsel/recipegen/internal/infrastructure/config"
	"github.com/alchemorsel/recipegen/internal/infrastructure/render"
	"github.com/alchemorsel/recipegen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/recipegen/pkg/errors"
	"github.com/alchemorsel/recipegen/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Output formats for generate and options
const (
	formatText = "text"
	formatJSON = "json"
)

type generateOptions struct {
	ingredients []string
	cookingTime string
	diet        []string
	servings    string
	cuisine     string
	server      string
	format      string
	quiet       bool
	verbose     bool
}

func generateCmd() *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one recipe and print it",
		Example: `  recipegen generate -i chicken -i rice --time "30 minutes" --diet Vegan
  recipegen generate -i tofu --server http://localhost:8080 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.ingredients, "ingredient", "i", nil, "ingredient to cook with (repeatable)")
	cmd.Flags().StringVar(&opts.cookingTime, "time", recipe.DefaultCookingTime, "cooking time limit, e.g. \"45 minutes\"")
	cmd.Flags().StringArrayVar(&opts.diet, "diet", nil, "dietary restriction (repeatable)")
	cmd.Flags().StringVar(&opts.servings, "servings", recipe.DefaultServings, "number of servings, e.g. \"2 people\"")
	cmd.Flags().StringVar(&opts.cuisine, "cuisine", recipe.DefaultCuisine, "cuisine style")
	cmd.Flags().StringVar(&opts.server, "server", "", "recipegen server to relay through instead of the configured provider")
	cmd.Flags().StringVar(&opts.format, "format", formatText, "output format: text or json")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not stream progress to stderr")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at the configured level instead of warn")
	_ = cmd.MarkFlagRequired("ingredient")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	if opts.format != formatText && opts.format != formatJSON {
		return fmt.Errorf("unknown format %q", opts.format)
	}

	req, err := buildRequest(opts)
	if err != nil {
		return err
	}

	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}

	level := "warn"
	if opts.verbose {
		level = cfg.Logging.Level
	}
	log, err := logger.New(logger.Config{
		Level:       level,
		Format:      "console",
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	provider, err := cliProvider(cfg, opts.server, log)
	if err != nil {
		return err
	}

	service := generation.NewService(provider, nil, generation.Config{
		Model:            cfg.AI.Model,
		DeveloperMessage: cfg.AI.DeveloperMessage,
	}, log)

	stderr := cmd.ErrOrStderr()
	progress := progressWriter(stderr)
	if opts.quiet {
		progress = nil
	}

	result, err := service.Generate(cmd.Context(), req, progress)
	if progress != nil {
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return err
	}

	for _, field := range result.Defaulted {
		log.Debug("Field defaulted", zap.String("field", field))
	}

	return printRecipe(cmd.OutOrStdout(), opts.format, result.Recipe)
}

// buildRequest runs the flags through a Form so they are trimmed and
// validated the same way the HTTP API validates them
func buildRequest(opts *generateOptions) (recipe.Request, error) {
	form := recipe.NewForm()
	for _, name := range opts.ingredients {
		if err := form.AddIngredient(name); err != nil {
			return recipe.Request{}, err
		}
	}
	seen := make(map[string]bool, len(opts.diet))
	for _, tag := range opts.diet {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		if _, err := form.ToggleRestriction(tag); err != nil {
			return recipe.Request{}, err
		}
	}
	if err := form.SetServings(opts.servings); err != nil {
		return recipe.Request{}, err
	}
	if err := form.SetCookingTime(opts.cookingTime); err != nil {
		return recipe.Request{}, err
	}
	if err := form.SetCuisine(opts.cuisine); err != nil {
		return recipe.Request{}, err
	}
	return form.Build()
}

func cliProvider(cfg *config.Config, server string, log *zap.Logger) (outbound.ChatProvider, error) {
	var provider outbound.ChatProvider
	if server != "" {
		provider = relay.NewClient(relay.Config{
			BackendURL: server,
			Timeout:    cfg.AI.RequestTimeout,
		}, log)
	} else {
		var err error
		if provider, err = ai.NewProvider(cfg.AI, log); err != nil {
			return nil, err
		}
	}
	return ai.Guard(provider, cfg.AI.CircuitBreaker, log), nil
}

// progressWriter echoes only the new tail of the accumulated text
func progressWriter(w io.Writer) func(string) {
	printed := 0
	return func(text string) {
		if len(text) < printed {
			printed = 0
		}
		_, _ = io.WriteString(w, text[printed:])
		printed = len(text)
	}
}

func printRecipe(w io.Writer, format string, r recipe.Recipe) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	return render.Text(w, r)
}

func optionsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the supported servings, cooking times, cuisines and dietary restrictions",
		RunE: func(cmd *cobra.Command, args []string) error {
			options := recipe.AllOptions()
			out := cmd.OutOrStdout()

			switch format {
			case formatJSON:
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(options)
			case formatText:
				fmt.Fprintf(out, "Servings:      %s\n", strings.Join(options.Servings, ", "))
				fmt.Fprintf(out, "Cooking times: %s\n", strings.Join(options.CookingTimes, ", "))
				fmt.Fprintf(out, "Cuisines:      %s\n", strings.Join(options.Cuisines, ", "))
				fmt.Fprintf(out, "Dietary:       %s\n", strings.Join(options.Dietary, ", "))
				return nil
			default:
				return fmt.Errorf("unknown format %q", format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", formatText, "output format: text or json")
	return cmd
}

// userMessage is what the terminal shows for err
func userMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Code == apperrors.CodeValidationFailed && appErr.Details != "" {
			return appErr.Message + ": " + appErr.Details
		}
		return appErr.Message
	}
	return err.Error()
}
