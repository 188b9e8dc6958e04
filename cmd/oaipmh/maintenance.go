package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/totegamma/oaipmh/internal/config"
	"github.com/totegamma/oaipmh/internal/domain"
	"github.com/totegamma/oaipmh/internal/infra/database"
	"github.com/totegamma/oaipmh/internal/usecase"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(configPath)
		if err != nil {
			return err
		}
		db, err := database.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			return errors.Wrap(err, "connect postgres")
		}
		if err := database.MigratePostgres(db); err != nil {
			return errors.Wrap(err, "migrate")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrated")
		return nil
	},
}

// importLine is one record of an import file (JSON lines).
type importLine struct {
	ID      string              `json:"id"`
	Fields  map[string][]string `json:"fields"`
	Changed *time.Time          `json:"changed,omitempty"`
	Deleted bool                `json:"deleted,omitempty"`
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Index records from a JSON lines file (or stdin)",
	Long: `Each line is {"id": "...", "fields": {"title": ["..."]}, "changed": "2024-01-01T00:00:00Z"}.
A line with "deleted": true removes the record and records the deletion.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		in = file
	}

	d, err := setup(ctx, configPath)
	if err != nil {
		return err
	}
	defer d.Close()
	records := usecase.NewRecordUsecase(d.settings.Core, d.index, d.tracker)

	indexed, deleted, err := importRecords(ctx, records, in)
	slog.Info(
		"import finished",
		slog.Int("indexed", indexed),
		slog.Int("deleted", deleted),
		slog.String("module", "import"),
	)
	return err
}

// committer is the part of RecordUsecase the import loop needs.
type committer interface {
	Commit(ctx context.Context, input usecase.CommitInput) error
}

func importRecords(ctx context.Context, records committer, in io.Reader) (indexed, deleted int, err error) {
	dec := json.NewDecoder(in)
	for line := 1; ; line++ {
		var item importLine
		err := dec.Decode(&item)
		if err == io.EOF {
			return indexed, deleted, nil
		}
		if err != nil {
			return indexed, deleted, errors.Wrapf(err, "record %d", line)
		}
		if item.ID == "" {
			return indexed, deleted, errors.Errorf("record %d: missing id", line)
		}

		input := usecase.CommitInput{}
		if item.Deleted {
			id := item.ID
			input.Delete = &id
		} else {
			input.Record = &domain.Record{ID: item.ID, Fields: item.Fields}
			if item.Changed != nil {
				input.Changed = *item.Changed
			}
		}
		if err := records.Commit(ctx, input); err != nil {
			return indexed, deleted, errors.Wrapf(err, "record %d (%s)", line, item.ID)
		}
		if item.Deleted {
			deleted++
		} else {
			indexed++
		}
	}
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Remove records from the index and mark them deleted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := setup(ctx, configPath)
		if err != nil {
			return err
		}
		defer d.Close()
		records := usecase.NewRecordUsecase(d.settings.Core, d.index, d.tracker)

		for _, id := range args {
			if err := records.Commit(ctx, usecase.CommitInput{Delete: &id}); err != nil {
				return errors.Wrapf(err, "delete %s", id)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", id)
		}
		return nil
	},
}

var purgeTokensCmd = &cobra.Command{
	Use:   "purge-tokens",
	Short: "Delete expired resumption tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := setup(ctx, configPath)
		if err != nil {
			return err
		}
		defer d.Close()

		purged, err := d.tokens.PurgeExpired(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired resumption tokens\n", purged)
		return nil
	},
}
