package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/marcus/roster/internal/admin"
	"github.com/marcus/roster/internal/backup"
	"github.com/marcus/roster/internal/models"
	"github.com/marcus/roster/internal/output"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	Short:   "Export or import the whole dataset",
	GroupID: "data",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(os.Getenv(envLogLevel), os.Getenv(envLogFormat))
		return requireAdmin(admin.TabData)
	},
}

// s3Config reads the S3 flags shared by export and import.
func s3Config(cmd *cobra.Command) backup.S3Config {
	region, _ := cmd.Flags().GetString("s3-region")
	endpoint, _ := cmd.Flags().GetString("s3-endpoint")
	pathStyle, _ := cmd.Flags().GetBool("s3-path-style")
	return backup.S3Config{Region: region, Endpoint: endpoint, UsePathStyle: pathStyle}
}

// resolveFormat uses --format when given, else the file extension.
func resolveFormat(cmd *cobra.Command, dest string) (backup.Format, error) {
	if raw, _ := cmd.Flags().GetString("format"); raw != "" {
		return backup.ParseFormat(raw)
	}
	return backup.FormatFromPath(dest)
}

// writeBackup stores data at dest, a file path or an s3:// URL.
func writeBackup(ctx context.Context, dest string, f backup.Format, data []byte, cfg backup.S3Config) error {
	bucket, key, isS3, err := backup.ParseS3URL(dest)
	if err != nil {
		return err
	}
	if !isS3 {
		return os.WriteFile(dest, data, 0644)
	}
	target, err := backup.NewS3Target(ctx, bucket, cfg)
	if err != nil {
		return err
	}
	return target.Put(ctx, key, data, backup.ContentType(f))
}

// readBackup loads src, a file path or an s3:// URL.
func readBackup(ctx context.Context, src string, cfg backup.S3Config) ([]byte, error) {
	bucket, key, isS3, err := backup.ParseS3URL(src)
	if err != nil {
		return nil, err
	}
	if !isS3 {
		return os.ReadFile(src)
	}
	target, err := backup.NewS3Target(ctx, bucket, cfg)
	if err != nil {
		return nil, err
	}
	return target.Get(ctx, key)
}

var backupExportCmd = &cobra.Command{
	Use:   "export [file|s3://bucket/key]",
	Short: "Export all records",
	Long: `Export all records to a file or an S3 object.

The format follows the extension (.json, .json.sz, .yaml, .xlsx) unless
--format is given. Without a destination a JSON file named after the
current time is written to the working directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := fmt.Sprintf("roster-%s.json", time.Now().Format("20060102-150405"))
		if len(args) == 1 {
			dest = args[0]
		}
		f, err := resolveFormat(cmd, dest)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		a, err := openReady(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		data, err := backup.Export(a.Data, f, string(a.Active.DataSource))
		if err != nil {
			output.Error("export: %v", err)
			return err
		}
		if err := writeBackup(cmd.Context(), dest, f, data, s3Config(cmd)); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Exported %d bytes to %s", len(data), dest)
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file|s3://bucket/key>",
	Short: "Import records from a backup",
	Long: `Import records from a backup. Every record is added with a new id.

With --replace, all existing records are removed first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		f, err := resolveFormat(cmd, src)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		replace, _ := cmd.Flags().GetBool("replace")
		if replace {
			yes, _ := cmd.Flags().GetBool("yes")
			ok, err := confirm("Replace all records?", "Every existing record is deleted before the import.", yes)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			if !ok {
				fmt.Println("Cancelled")
				return nil
			}
		}

		raw, err := readBackup(cmd.Context(), src, s3Config(cmd))
		if err != nil {
			output.Error("%v", err)
			return err
		}
		env, err := backup.Decode(bytes.NewReader(raw), f)
		if err != nil {
			output.Error("%v", err)
			return err
		}

		a, err := openReady(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		stats, err := backup.Restore(cmd.Context(), a.Data, env.Data, replace)
		if err != nil {
			output.Error("%v (%d records imported before the failure)", err, stats.Total())
			return err
		}
		output.Success("Imported %d records", stats.Total())
		for _, t := range models.AllEntityTypes {
			fmt.Printf("  %-10s %d\n", t.Collection(), stats[t])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupExportCmd, backupImportCmd)
	for _, c := range []*cobra.Command{backupExportCmd, backupImportCmd} {
		c.Flags().String("format", "", "json, json.sz, yaml or xlsx")
		c.Flags().String("s3-region", "", "AWS region for s3:// destinations")
		c.Flags().String("s3-endpoint", "", "Custom S3 endpoint (MinIO, LocalStack)")
		c.Flags().Bool("s3-path-style", false, "Use path-style S3 addressing")
	}
	backupImportCmd.Flags().Bool("replace", false, "Remove existing records first")
	backupImportCmd.Flags().BoolP("yes", "y", false, "Replace without asking")
}
