package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"milesofsmiles/api/internal/app"
	"milesofsmiles/api/internal/content"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "inspect and edit the stored site content",
}

func init() {
	rootCmd.AddCommand(contentCmd)
	contentCmd.AddCommand(showContentCmd())
	contentCmd.AddCommand(resetContentCmd())
	contentCmd.AddCommand(pushContentCmd())
	contentCmd.AddCommand(listSnapshotsCmd())
	contentCmd.AddCommand(restoreSnapshotCmd())
}

// withService runs fn against a started service sharing the configured
// stores. Closing the service flushes any pending remote write. Running
// servers only hear about the change through the Redis bus.
func withService(ctx context.Context, fn func(*app.Service, *runtime) error) error {
	rt, err := openRuntime(ctx, appConfig, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	service := app.New(appConfig, rt.local, rt.remote, rt.bus, rt.search)
	defer service.Close()
	service.Start(ctx)
	select {
	case <-service.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn(service, rt)
}

func showContentCmd() *cobra.Command {
	var asYAML bool
	var sectionName string

	command := &cobra.Command{
		Use:   "show",
		Short: "print the current document",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(service *app.Service, _ *runtime) error {
				var value any = service.Content()
				if sectionName != "" {
					section, err := content.ParseSection(sectionName)
					if err != nil {
						return fmt.Errorf("%w: %s (one of %v)", err, sectionName, content.Sections)
					}
					if value, err = service.Section(section); err != nil {
						return err
					}
				}
				if asYAML {
					return printYAML(value)
				}
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(value)
			})
		},
	}
	command.Flags().BoolVar(&asYAML, "yaml", false, "print YAML instead of JSON")
	command.Flags().StringVar(&sectionName, "section", "", "print one section only")
	return command
}

func printYAML(value any) error {
	if doc, ok := value.(content.Document); ok {
		raw, err := doc.YAML()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(raw)
		return err
	}
	raw, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(raw)
	return err
}

func resetContentCmd() *cobra.Command {
	var yes bool

	command := &cobra.Command{
		Use:   "reset",
		Short: "replace the document with the built-in defaults",
		Long: `Replace the document with the built-in defaults.

Running servers pick the change up only through the Redis bus
(MOS_REDIS_URL); without it they keep serving their copy until restarted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset discards every edit; pass --yes to confirm")
			}
			return withService(cmd.Context(), func(service *app.Service, rt *runtime) error {
				rt.warnIfUnshared()
				service.ReplaceDocument(cmd.Context(), content.Defaults())
				color.Yellow("content reset to defaults")
				return nil
			})
		},
	}
	command.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return command
}

func pushContentCmd() *cobra.Command {
	var file string

	command := &cobra.Command{
		Use:   "push",
		Short: "replace the document with a JSON or YAML file",
		Long: `Replace the document with a JSON or YAML file. Missing parts fall back
to the defaults.

Running servers pick the change up only through the Redis bus
(MOS_REDIS_URL); without it they keep serving their copy until restarted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(file)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), func(service *app.Service, rt *runtime) error {
				rt.warnIfUnshared()
				doc = service.ReplaceDocument(cmd.Context(), doc)
				color.Green("pushed %s: %d destinations", file, len(doc.Destinations))
				return nil
			})
		},
	}
	command.Flags().StringVarP(&file, "file", "f", "", "document file (.json, .yaml or .yml)")
	_ = command.MarkFlagRequired("file")
	return command
}

// readDocument loads a document file. Missing or malformed parts fall back
// to defaults the same way stored content does.
func readDocument(path string) (content.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return content.Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return content.MergeYAML(raw)
	case ".json":
		if !json.Valid(raw) {
			return content.Document{}, fmt.Errorf("%s is not valid JSON", path)
		}
		return content.Merge(raw), nil
	default:
		return content.Document{}, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func listSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "list archived snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), appConfig, false)
			if err != nil {
				return err
			}
			defer rt.Close()
			archive, err := rt.requireArchive()
			if err != nil {
				return err
			}
			keys, err := archive.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				color.Yellow("no snapshots archived yet")
				return nil
			}
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"#", "Key"})
			for i, key := range keys {
				table.Append([]string{fmt.Sprint(i + 1), key})
			}
			table.Render()
			return nil
		},
	}
}

func restoreSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <key>",
		Short: "replace the document with an archived snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(service *app.Service, rt *runtime) error {
				archive, err := rt.requireArchive()
				if err != nil {
					return err
				}
				raw, err := archive.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				rt.warnIfUnshared()
				service.ReplaceDocument(cmd.Context(), content.Merge(raw))
				color.Green("restored %s", args[0])
				return nil
			})
		},
	}
}
