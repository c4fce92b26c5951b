package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadflow/internal/enrich"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

const redacted = "[redacted]"

var settingsUser string

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage per-user pipeline settings",
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or replace a user's settings from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open settings file")
		}
		defer f.Close() //nolint:errcheck

		s, err := readSettings(f, settingsUser)
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := importSettings(cmd.Context(), st, s); err != nil {
			return err
		}
		zap.L().Info("settings imported", zap.String("user_id", s.UserID))
		return nil
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a user's settings as YAML with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if settingsUser == "" {
			return eris.New("--user is required")
		}
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		s, err := st.GetSettings(cmd.Context(), settingsUser)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return eris.Errorf("no settings for user %s", settingsUser)
			}
			return err
		}
		return writeSettings(cmd.OutOrStdout(), s)
	},
}

// readSettings decodes YAML settings; userID, when set, overrides the file.
func readSettings(r io.Reader, userID string) (*model.Settings, error) {
	var s model.Settings
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, eris.Wrap(err, "decode settings yaml")
	}
	if userID != "" {
		s.UserID = userID
	}
	if s.UserID == "" {
		return nil, eris.New("settings need a user id (--user or user_id)")
	}
	s.ColumnMappings = s.ColumnMappings.WithDefaults()
	return &s, nil
}

func importSettings(ctx context.Context, st store.Store, s *model.Settings) error {
	if !s.SheetsConfigured() {
		zap.L().Warn("settings have no sheet ids, runs will be rejected until both are set",
			zap.String("user_id", s.UserID))
	}
	for field, keys := range enrich.UnknownPlaceholders(*s) {
		zap.L().Warn("settings prompt uses unknown placeholders, they are sent unchanged",
			zap.String("user_id", s.UserID),
			zap.String("field", field),
			zap.Strings("placeholders", keys))
	}
	return eris.Wrap(st.UpsertSettings(ctx, s), "save settings")
}

func writeSettings(w io.Writer, s *model.Settings) error {
	out := *s
	if out.AI.APIKey != "" {
		out.AI.APIKey = redacted
	}
	if out.GoogleCredentials != "" {
		out.GoogleCredentials = redacted
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return eris.Wrap(err, "encode settings yaml")
	}
	return enc.Close()
}

func init() {
	settingsCmd.PersistentFlags().StringVar(&settingsUser, "user", "", "user id")
	settingsCmd.AddCommand(settingsImportCmd, settingsShowCmd)
	rootCmd.AddCommand(settingsCmd)
}
