package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sstent/vo2sync-go/internal/config"
	"github.com/sstent/vo2sync-go/internal/database"
	"github.com/sstent/vo2sync-go/internal/models"
	"github.com/sstent/vo2sync-go/internal/strava"
	"github.com/sstent/vo2sync-go/internal/sync"
	"github.com/sstent/vo2sync-go/internal/validate"
)

var (
	dbPath    string
	overrides models.Overrides
	perPage   int
	page      int
)

var rootCmd = &cobra.Command{
	Use:           "vo2sync",
	Short:         "vo2sync ingests FIT files and Strava activities into a local workout store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg := config.Load()
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg
}

func withApp(cmd *cobra.Command, run func(*App) error) error {
	app := newApp(loadConfig())
	if err := app.init(cmd.Context()); err != nil {
		app.close()
		return err
	}
	defer app.close()
	return run(app)
}

func parseIDArg(name, value string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be > 0", name)
	}
	return v, nil
}

func optional(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := newApp(loadConfig())
		if err := app.init(cmd.Context()); err != nil {
			app.close()
			return err
		}
		return app.serve()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		db, err := database.NewSQLiteDB(cfg.DBPath, nil)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Database ready at %s\n", cfg.DBPath)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored workouts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			workouts, err := app.db.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tNAME\tSOURCE\tTIME\tPOWER\tHR")
			for _, w := range workouts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					w.ID, w.Date, w.Name, w.Source, optional(w.TotalTime), optional(w.AvgPower), optional(w.AvgHR))
			}
			return tw.Flush()
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a workout with its data points",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIDArg("id", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(app *App) error {
			deleted, err := app.db.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("workout %d: %w", id, models.ErrNotFound)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted workout %d\n", id)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.fit>",
	Short: "Import a FIT file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validate.CheckExtension(args[0]); err != nil {
			return err
		}
		return withApp(cmd, func(app *App) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			// The service removes what it imports, so hand it a copy.
			staged, original, err := validate.StageUpload(args[0], f, app.cfg.UploadDir)
			if err != nil {
				return err
			}
			res, err := app.syncService.ImportFile(cmd.Context(), staged, original, overrides)
			if err != nil {
				os.Remove(staged)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as workout %d (%d data points)\n", original, res.WorkoutID, res.Points)
			return nil
		})
	},
}

var stravaCmd = &cobra.Command{
	Use:   "strava",
	Short: "Connect to Strava and import activities",
}

var stravaAuthURLCmd = &cobra.Command{
	Use:   "auth-url",
	Short: "Print the URL that grants vo2sync access to your activities",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if !cfg.StravaConfigured() {
			return errStravaNotConfigured
		}
		if cfg.StateToken == "" {
			return errStateNotConfigured
		}
		app := newApp(cfg)
		fmt.Fprintln(cmd.OutOrStdout(), strava.AuthCodeURL(app.oauth, cfg.StateToken))
		return nil
	},
}

var stravaExchangeCmd = &cobra.Command{
	Use:   "exchange <code>",
	Short: "Exchange an authorization code for a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			if err := app.connect(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Connected to Strava")
			return nil
		})
	},
}

var stravaDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the stored Strava token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			if err := app.tokens.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Disconnected from Strava")
			return nil
		})
	},
}

var stravaWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the connected athlete",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			if app.strava == nil {
				return sync.ErrRemoteNotConnected
			}
			athlete, err := app.strava.GetAthlete(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s %s\n", athlete.ID, athlete.Username, athlete.FirstName, athlete.LastName)
			return nil
		})
	},
}

var stravaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent Strava activities",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			activities, err := app.syncService.ListActivities(cmd.Context(), perPage, page)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTART\tTYPE\tNAME")
			for _, a := range activities {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", a.ID, a.StartDate, a.Type, a.Name)
			}
			return tw.Flush()
		})
	},
}

var stravaImportCmd = &cobra.Command{
	Use:   "import <activity-id>",
	Short: "Import one Strava activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseIDArg("activity id", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(app *App) error {
			res, err := app.syncService.ImportRemote(cmd.Context(), id, overrides)
			if errors.Is(err, models.ErrDuplicate) {
				fmt.Fprintf(cmd.OutOrStdout(), "Activity %d is already imported\n", id)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported activity %d as workout %d (%d data points)\n", id, res.WorkoutID, res.Points)
			return nil
		})
	},
}

var stravaSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import recent Strava activities that are not stored yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(app *App) error {
			report, err := app.syncService.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seen %d, imported %d, skipped %d, failed %d\n",
				report.Seen, report.Imported, report.Skipped, report.Failed)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides DB_PATH)")

	for _, cmd := range []*cobra.Command{importCmd, stravaImportCmd} {
		cmd.Flags().IntVar(&overrides.FTP, "ftp", 0, "FTP in watts, used when the source has none")
		cmd.Flags().IntVar(&overrides.MaxHR, "max-hr", 0, "Maximum heart rate in bpm, used when the source has none")
	}
	stravaListCmd.Flags().IntVar(&perPage, "per-page", 30, "Activities per page")
	stravaListCmd.Flags().IntVar(&page, "page", 1, "Page number")

	stravaCmd.AddCommand(stravaAuthURLCmd, stravaExchangeCmd, stravaDisconnectCmd, stravaWhoamiCmd, stravaListCmd, stravaImportCmd, stravaSyncCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, listCmd, deleteCmd, importCmd, stravaCmd)
}
