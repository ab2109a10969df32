package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"romplestiltskin/internal/app"
	"romplestiltskin/internal/config"
	"romplestiltskin/internal/verify"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "Import", "Scan").
func newApp(operation, parameters string) (*app.App, error) {
	defaults, err := app.ResolveDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg, operation, parameters)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// recordKey builds an update key from the --file/--crc flags.
func recordKey(cmd *cobra.Command) (verify.Key, error) {
	file, _ := cmd.Flags().GetString("file")
	crc, _ := cmd.Flags().GetString("crc")
	key := verify.Key{FilePath: file, CRC32: strings.ToLower(crc)}
	if key.IsZero() {
		return verify.Key{}, fmt.Errorf("either --file or --crc is required")
	}
	return key, nil
}

var rootCmd = &cobra.Command{
	Use:   "romple",
	Short: "ROM collection verification tool",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.ResolveDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := defaults.Config()

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Data Dir: %s\n", cfg.DataDir)
		fmt.Printf("DAT Dir:  %s\n", cfg.DATDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.ResolveDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Data Dir:             %s\n", cfg.DataDir)
		fmt.Printf("Log Dir:              %s\n", cfg.LogDir)
		fmt.Printf("DAT Dir:              %s\n", cfg.DATDir)
		fmt.Printf("Workers:              %d\n", cfg.Scan.WorkerCount)
		fmt.Printf("Similarity Threshold: %.2f\n", cfg.Scan.SimilarityThreshold)
		fmt.Printf("Chunk Size:           %d MB\n", cfg.Scan.ChunkSizeMB)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Import catalog files",
	Long:  "Import one catalog file, or every catalog file inside a directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Import", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		imported, found, err := a.Import(cmd.Context(), args[0], newProgress("importing"))
		if err != nil {
			a.Fail()
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %d of %d catalog file(s)\n", imported, found)
		return nil
	},
}

// systems command
var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "List imported systems",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Systems", "")
		if err != nil {
			return err
		}
		defer a.Close()

		systems, err := a.Systems(cmd.Context())
		if err != nil {
			return err
		}

		if len(systems) == 0 {
			fmt.Println("No systems imported.")
			return nil
		}

		rows := make([][]string, 0, len(systems))
		for _, s := range systems {
			rows = append(rows, []string{
				s.Name,
				strconv.Itoa(s.GameCount),
				s.UpdatedAt.Format("2006-01-02 15:04:05"),
			})
		}
		fmt.Println(renderTable(
			[]string{"System", "Games", "Updated"},
			rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft},
		))
		return nil
	},
}

var systemsDeleteCmd = &cobra.Command{
	Use:   "delete SYSTEM",
	Short: "Delete a system and its scan records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("DeleteSystem", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DeleteSystem(cmd.Context(), args[0]); err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Deleted system: %s\n", args[0])
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan DIR",
	Short: "Verify ROM files against a system's catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		system, _ := cmd.Flags().GetString("system")
		if system == "" {
			return fmt.Errorf("--system is required")
		}

		a, err := newApp("Scan", strings.Join(append([]string{system}, args...), " "))
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Scan(cmd.Context(), args[0], system, newProgress("scanning"))
		if err != nil {
			a.Fail()
			return fmt.Errorf("scan failed: %w", err)
		}

		counts := make(map[verify.Status]int)
		for _, r := range report.Results {
			counts[r.Status]++
		}

		fmt.Printf("Scanned %d file(s) against %s\n\n", len(report.Results), system)
		rows := [][]string{}
		for _, status := range verify.AllStatuses() {
			if status == verify.StatusMissing {
				rows = append(rows, []string{string(status), strconv.Itoa(len(report.Missing))})
				continue
			}
			if n := counts[status]; n > 0 {
				rows = append(rows, []string{string(status), strconv.Itoa(n)})
			}
		}
		fmt.Println(renderTable(
			[]string{"Status", "Files"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status SYSTEM",
	Short: "Show per-status record counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Status", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.Summary(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if summary.Total == 0 {
			fmt.Println("No scan records. Run a scan first.")
			return nil
		}

		rows := [][]string{}
		for _, status := range verify.AllStatuses() {
			if n := summary.Count(status); n > 0 {
				rows = append(rows, []string{string(status), strconv.Itoa(n)})
			}
		}
		rows = append(rows, []string{"total", strconv.Itoa(summary.Total)})
		fmt.Println(renderTable(
			[]string{"Status", "Files"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list SYSTEM",
	Short: "List scan records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFlag, _ := cmd.Flags().GetString("status")
		var status verify.Status
		if statusFlag != "" {
			parsed, ok := verify.ParseStatus(statusFlag)
			if !ok {
				return fmt.Errorf("unknown status %q (valid: %v)", statusFlag, verify.AllStatuses())
			}
			status = parsed
		}

		a, err := newApp("List", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Records(cmd.Context(), args[0], status)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No matching records.")
			return nil
		}

		rows := make([][]string, 0, len(records))
		for _, r := range records {
			match := ""
			if r.Matched != nil {
				match = r.Matched.ReleaseName
			}
			rows = append(rows, []string{
				r.FilePath,
				r.CRC32,
				strconv.FormatInt(r.FileSize, 10),
				string(r.Status),
				match,
			})
		}
		fmt.Println(renderTable(
			[]string{"File", "CRC32", "Size", "Status", "Match"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
		))
		return nil
	},
}

// missing command
var missingCmd = &cobra.Command{
	Use:   "missing SYSTEM",
	Short: "List catalog entries with no matched file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Missing", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		missing, err := a.Missing(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if len(missing) == 0 {
			fmt.Println("Nothing missing.")
			return nil
		}

		rows := make([][]string, 0, len(missing))
		for _, entry := range missing {
			rows = append(rows, []string{
				entry.ReleaseName,
				entry.CRC32,
				strconv.FormatInt(entry.Size, 10),
				entry.Region,
			})
		}
		fmt.Println(renderTable(
			[]string{"Release", "CRC32", "Size", "Region"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		))
		return nil
	},
}

// duplicates command
var duplicatesCmd = &cobra.Command{
	Use:   "duplicates SYSTEM",
	Short: "List files sharing a checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Duplicates", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		groups, err := a.Duplicates(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if len(groups) == 0 {
			fmt.Println("No duplicates.")
			return nil
		}

		for _, group := range groups {
			fmt.Printf("%s (%d files):\n", group[0].CRC32, len(group))
			for _, r := range group {
				fmt.Printf("  %s  [%s]\n", r.FilePath, r.Status)
			}
		}
		return nil
	},
}

// ignore command
var ignoreCmd = &cobra.Command{
	Use:   "ignore SYSTEM",
	Short: "Exclude a file or entry from verification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := recordKey(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("Ignore", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Ignore(cmd.Context(), args[0], key); err != nil {
			a.Fail()
			return err
		}
		fmt.Println("Ignored.")
		return nil
	},
}

// unignore command
var unignoreCmd = &cobra.Command{
	Use:   "unignore SYSTEM",
	Short: "Restore an ignored file or entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := recordKey(cmd)
		if err != nil {
			return err
		}

		a, err := newApp("Unignore", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Unignore(cmd.Context(), args[0], key); err != nil {
			a.Fail()
			return err
		}
		fmt.Println("Restored.")
		return nil
	},
}

// rename command
var renameCmd = &cobra.Command{
	Use:   "rename SYSTEM OLD NEW",
	Short: "Record a file rename",
	Long:  "Update a scan record after renaming the file on disk. The status is unchanged until the next scan.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Rename", strings.Join(args, " "))
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Rename(cmd.Context(), args[0], args[1], args[2]); err != nil {
			a.Fail()
			return err
		}
		fmt.Printf("Renamed %s -> %s\n", args[1], args[2])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History", "")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
			)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// systems subcommands
	systemsCmd.AddCommand(systemsDeleteCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(systemsCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("system", "s", "", "System name the catalog was imported under")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("status", "", "Only show records with this status")
	rootCmd.AddCommand(missingCmd)
	rootCmd.AddCommand(duplicatesCmd)
	rootCmd.AddCommand(ignoreCmd)
	ignoreCmd.Flags().String("file", "", "Select the record by file path")
	ignoreCmd.Flags().String("crc", "", "Select the record by CRC32 checksum")
	rootCmd.AddCommand(unignoreCmd)
	unignoreCmd.Flags().String("file", "", "Select the record by file path")
	unignoreCmd.Flags().String("crc", "", "Select the record by CRC32 checksum")
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
