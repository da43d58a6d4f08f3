package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/backoffice/internal/auth"
	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/db"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/repository"
)

func (c *cli) openDrafts() (*db.SQLite, repository.DraftStore, error) {
	if c.cfg.Drafts.Store != config.StoreSQLite {
		return nil, nil, fmt.Errorf("drafts are kept in %s; only the sqlite store outlives the console", c.cfg.Drafts.Store)
	}
	database := db.NewSQLite(c.cfg.Drafts.Path)
	if err := database.InitDB(); err != nil {
		return nil, nil, err
	}
	store, err := repository.New(c.cfg.Drafts, database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, store, nil
}

func (c *cli) draftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect and maintain saved draft snapshots",
	}
	cmd.AddCommand(c.draftsListCmd(), c.draftsPruneCmd(), c.draftsFixTimesCmd())
	return cmd
}

func (c *cli) draftsListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the snapshots of one operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, store, err := c.openDrafts()
			if err != nil {
				return err
			}
			defer database.Close()

			snaps, err := store.ListDrafts(model.UserID(owner))
			if err != nil {
				return err
			}
			recs := make([]model.Record, 0, len(snaps))
			for _, s := range snaps {
				recs = append(recs, model.Record{
					"_id":      s.ID,
					"resource": s.Resource,
					"record":   s.RecordID,
					"title":    s.Title,
					"modified": s.ModifiedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Println(titleStyle.Render(fmt.Sprintf("drafts of %s (%d)", owner, len(snaps))))
			fmt.Println(renderTable([]string{"resource", "record", "title", "modified"}, recs))
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", string(auth.AdminUserID), "operator whose drafts are listed")
	return cmd
}

func (c *cli) draftsPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots nobody resumed",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, store, err := c.openDrafts()
			if err != nil {
				return err
			}
			defer database.Close()

			n, err := store.PruneDrafts(time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Println(okStyle.Render(fmt.Sprintf("Pruned %d snapshots", n)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age past which snapshots are deleted")
	return cmd
}

// parseFuzzyTime parses the timestamp layouts sqlite has stored over time.
func parseFuzzyTime(timeStr string) (time.Time, error) {
	timeFormats := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		time.RFC3339,
		"2006-01-02 15:04:05",
	}

	for _, format := range timeFormats {
		if parsed, err := time.Parse(format, timeStr); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse time '%s' with any known format", timeStr)
}

// draftsFixTimesCmd rewrites snapshot timestamps as UTC so pruning and ordering
// compare like with like.
func (c *cli) draftsFixTimesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fix-times",
		Short: "Normalize snapshot timestamps to UTC",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := c.openDrafts()
			if err != nil {
				return err
			}
			defer database.Close()
			sqlDB := database.Get()

			rows, err := sqlDB.QueryContext(cmd.Context(), "SELECT id, created_at, modified_at FROM draft_snapshots")
			if err != nil {
				return fmt.Errorf("failed to query snapshots: %w", err)
			}
			type snapshotTime struct {
				ID         string
				CreatedAt  string
				ModifiedAt string
			}
			var snaps []snapshotTime
			for rows.Next() {
				var s snapshotTime
				if err := rows.Scan(&s.ID, &s.CreatedAt, &s.ModifiedAt); err != nil {
					c.log.Warn().Err(err).Msg("Failed to scan row")
					continue
				}
				snaps = append(snaps, s)
			}
			err = rows.Err()
			rows.Close()
			if err != nil {
				return err
			}

			var fixed int
			err = database.InTx(cmd.Context(), func(tx *sql.Tx) error {
				for _, s := range snaps {
					for column, raw := range map[string]string{"created_at": s.CreatedAt, "modified_at": s.ModifiedAt} {
						t, err := parseFuzzyTime(raw)
						if err != nil {
							c.log.Warn().Err(err).Str("draft_id", s.ID).Str("column", column).Msg("Could not parse timestamp")
							continue
						}
						if _, err := tx.ExecContext(cmd.Context(), fmt.Sprintf("UPDATE draft_snapshots SET %s = ? WHERE id = ?", column), t, s.ID); err != nil {
							return fmt.Errorf("updating %s of %s: %w", column, s.ID, err)
						}
						fixed++
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Println(okStyle.Render(fmt.Sprintf("Normalized %d timestamps in %d snapshots", fixed, len(snaps))))
			return nil
		},
	}
}
