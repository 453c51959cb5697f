package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/trad/internal/arbiter"
	"github.com/kalambet/trad/internal/auth"
	"github.com/kalambet/trad/internal/catalog"
	"github.com/kalambet/trad/internal/config"
	"github.com/kalambet/trad/internal/storage"
)

// --- translate ---

var translateCmd = &cobra.Command{
	Use:   "translate <text>",
	Short: "Translate text through the running server",
	Long: `Translate text through the running server.

Examples:
  trad translate --from spa_Latn --to quy_Latn "Buenos días"
  trad translate --from eng_Latn --to grn_Latn --json "good morning"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		rec, err := translate(cmd, client, from, to, strings.Join(args, " "))
		if err != nil {
			return err
		}

		if asJSON {
			return printJSON(rec)
		}
		fmt.Println(rec.DstText)
		return nil
	},
}

func translate(cmd *cobra.Command, client *apiClient, from, to, text string) (storage.Record, error) {
	resp, err := client.post(cmd.Context(), "/translate", map[string]string{
		"src_lang": from,
		"dst_lang": to,
		"src_text": text,
	})
	if err != nil {
		return storage.Record{}, err
	}
	var rec storage.Record
	if err := decodeJSON(resp, &rec); err != nil {
		return storage.Record{}, err
	}
	return rec, nil
}

func init() {
	translateCmd.Flags().String("from", "", "source language code")
	translateCmd.Flags().String("to", "", "destination language code")
	translateCmd.Flags().Bool("json", false, "print the full record as JSON")
	translateCmd.MarkFlagRequired("from")
	translateCmd.MarkFlagRequired("to")
}

// --- records ---

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect stored translation records (reviewer token required)",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := recordsQuery(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/suggestions?"+q.Encode())
		if err != nil {
			return err
		}

		var recs []storage.Record
		if err := decodeJSON(resp, &recs); err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Println("No records found.")
			return nil
		}

		for _, r := range recs {
			fmt.Printf("%s  %s  %s->%s  %s => %s\n",
				shortID(r.ID),
				reviewState(r.Validated, r.Correct),
				r.SrcLang, r.DstLang,
				truncate(r.SrcText, 40),
				truncate(r.DstText, 40),
			)
		}
		return nil
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		rec, err := fetchRecord(cmd, client, args[0])
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

func recordsQuery(cmd *cobra.Command) (url.Values, error) {
	q := url.Values{}
	if langs, _ := cmd.Flags().GetStringSlice("lang"); len(langs) > 0 {
		q.Set("lang", strings.Join(langs, ","))
	}
	for _, name := range []string{"validated", "correct"} {
		v, _ := cmd.Flags().GetString(name)
		if v == "" {
			continue
		}
		if _, err := strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("--%s must be true or false", name)
		}
		q.Set(name, v)
	}
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	q.Set("limit", strconv.Itoa(limit))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q, nil
}

func fetchRecord(cmd *cobra.Command, client *apiClient, id string) (storage.Record, error) {
	resp, err := client.get(cmd.Context(), "/suggestions/"+url.PathEscape(id))
	if err != nil {
		return storage.Record{}, err
	}
	var rec storage.Record
	if err := decodeJSON(resp, &rec); err != nil {
		return storage.Record{}, err
	}
	return rec, nil
}

func init() {
	recordsListCmd.Flags().StringSlice("lang", nil, "only records involving these language codes")
	recordsListCmd.Flags().String("validated", "", "filter by review state (true or false)")
	recordsListCmd.Flags().String("correct", "", "filter by correctness (true or false)")
	recordsListCmd.Flags().Int("limit", 20, "maximum number of records")
	recordsListCmd.Flags().Int("offset", 0, "records to skip")
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)
}

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review pending feedback (reviewer token required)",
}

type reviewResult struct {
	Record  storage.Record  `json:"record"`
	Created *storage.Record `json:"created"`
}

var reviewAcceptCmd = &cobra.Command{
	Use:   "accept <id>",
	Short: "Accept a record, optionally correcting its texts",
	Long: `Accept a record, optionally correcting its texts.

Without --src-text the record's source text is kept. Without --suggestion the
user's suggestion is used, or the translation itself when there is none.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		srcText, _ := cmd.Flags().GetString("src-text")
		suggestion, _ := cmd.Flags().GetString("suggestion")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if srcText == "" || suggestion == "" {
			rec, err := fetchRecord(cmd, client, args[0])
			if err != nil {
				return err
			}
			if srcText == "" {
				srcText = rec.SrcText
			}
			if suggestion == "" {
				suggestion = rec.Suggestion
			}
			if suggestion == "" {
				suggestion = rec.DstText
			}
		}

		resp, err := client.patch(cmd.Context(), "/suggestions/"+url.PathEscape(args[0])+"/accept", map[string]string{
			"src_text":           srcText,
			"updated_suggestion": suggestion,
		})
		if err != nil {
			return err
		}
		var res reviewResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		if res.Created != nil {
			printSuccess("Kept %s as a negative example, created %s", res.Record.ID, res.Created.ID)
		} else {
			printSuccess("Accepted %s", res.Record.ID)
		}
		return nil
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Mark a record as an incorrect translation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.patch(cmd.Context(), "/suggestions/"+url.PathEscape(args[0])+"/reject", nil)
		if err != nil {
			return err
		}
		var res reviewResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printSuccess("Rejected %s", res.Record.ID)
		return nil
	},
}

func init() {
	reviewAcceptCmd.Flags().String("src-text", "", "corrected source text")
	reviewAcceptCmd.Flags().String("suggestion", "", "corrected translation")
	reviewCmd.AddCommand(reviewAcceptCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
}

// --- langs ---

var langsCmd = &cobra.Command{
	Use:   "langs",
	Short: "Manage the language catalog",
}

var langsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog languages",
	RunE: func(cmd *cobra.Command, args []string) error {
		code, _ := cmd.Flags().GetString("code")

		return withCatalog(func(cat *catalog.Catalog) error {
			langs, err := cat.List(cmd.Context(), code)
			if err != nil {
				return err
			}
			if len(langs) == 0 {
				fmt.Println("No languages found.")
				return nil
			}
			for _, l := range langs {
				marker := ""
				if l.IsNative {
					marker = colorize(colorGreen, " native")
				}
				fmt.Printf("%s  %s%s\n", colorize(colorBold, l.Code), l.Name, marker)
			}
			return nil
		})
	},
}

var langsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Upsert languages from a JSON array of {code, name, is_native}",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return withCatalog(func(cat *catalog.Catalog) error {
			n, err := cat.ImportLanguages(cmd.Context(), f)
			if err != nil {
				return err
			}
			printSuccess("Imported %d languages", n)
			return nil
		})
	},
}

var langsNativeCmd = &cobra.Command{
	Use:   "native <code-prefix>",
	Short: "Route languages whose code starts with prefix to the native model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCatalog(func(cat *catalog.Catalog) error {
			n, err := cat.MarkNative(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSuccess("Marked %d languages native", n)
			return nil
		})
	},
}

func init() {
	langsListCmd.Flags().String("code", "", "only codes containing this substring")
	langsCmd.AddCommand(langsListCmd)
	langsCmd.AddCommand(langsImportCmd)
	langsCmd.AddCommand(langsNativeCmd)
}

// --- pairs ---

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "Load reviewed translation pairs",
}

var pairsImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import validated pairs from a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, _ := cmd.Flags().GetString("actor")

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return withCatalog(func(cat *catalog.Catalog) error {
			n, err := cat.ImportPairs(cmd.Context(), f, actor)
			if err != nil {
				return err
			}
			printSuccess("Imported %d pairs", n)
			return nil
		})
	},
}

func init() {
	pairsImportCmd.Flags().String("actor", "import", "recorded as validator of the imported pairs")
	pairsCmd.AddCommand(pairsImportCmd)
}

// withCatalog opens the local store for operator commands.
func withCatalog(fn func(*catalog.Catalog) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()
	return fn(catalog.New(store))
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint a bearer token for a user and role",
	Long: `Mint a bearer token for a user and role.

Roles: User, Annotator, Native, Admin, NativeAdmin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		roleName, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		role, err := arbiter.ParseRole(roleName)
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("no JWT secret configured, set TRAD_AUTH_JWT_SECRET")
		}
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}

		token, err := auth.NewTokens(cfg.Auth.JWTSecret, ttl).Issue(arbiter.Principal{ID: user, Role: role})
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().String("user", "", "user ID recorded on the user's feedback")
	tokenIssueCmd.Flags().String("role", string(arbiter.RoleUser), "role granted by the token")
	tokenIssueCmd.Flags().Duration("ttl", 0, "token lifetime (default auth.token_ttl)")
	tokenIssueCmd.MarkFlagRequired("user")
	tokenCmd.AddCommand(tokenIssueCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if err := config.SetKey(configPath, key, value); err != nil {
			return err
		}
		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
