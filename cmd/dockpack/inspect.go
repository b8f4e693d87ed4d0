package main

import (
	"fmt"
	"strings"

	"github.com/dockpack/dockpack/internal/compose"
	"github.com/dockpack/dockpack/internal/engine"
	"github.com/spf13/cobra"
)

var (
	inspectPlan       bool
	inspectAllImages  bool
	inspectSkipImages bool
	inspectEnvFiles   []string
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect PROJECT",
		Short: "Show what a backup of the project would contain",
		Long: `Inspect a running compose project without backing it up. Lists the
manifests, env files, images, volumes, and bind mounts that a backup would
capture.

With --plan, the staged archive layout is printed instead, including the
destination path of every resource and anything that would be skipped.`,
		Example: `  dockpack inspect shop
  dockpack inspect shop --plan
  dockpack inspect shop --plan --skip-images`,
		Args: cobra.ExactArgs(1),
		RunE: inspectRun,
	}

	cmd.Flags().BoolVar(&inspectPlan, "plan", false, "print the staged archive layout")
	cmd.Flags().BoolVar(&inspectAllImages, "all-images", false, "include images of stopped containers")
	cmd.Flags().BoolVar(&inspectSkipImages, "skip-images", false, "exclude container images from the plan")
	cmd.Flags().StringArrayVar(&inspectEnvFiles, "env-file", nil, "env file passed to compose (repeatable)")

	return cmd
}

func inspectRun(cmd *cobra.Command, args []string) error {
	project := args[0]

	proj, err := globalCompose.Inspect(cmd.Context(), project, compose.InspectOptions{
		AllImages: inspectAllImages,
		EnvFiles:  inspectEnvFiles,
	})
	if err != nil {
		if engine.IsNotFound(err) {
			return fmt.Errorf("project %q not found: is it running? (docker compose ls)", project)
		}
		return err
	}

	if inspectPlan {
		return printPlan(proj)
	}

	fmt.Printf("Project: %s\n", proj.Name())
	fmt.Printf("Working directory: %s\n", proj.WorkDir())

	printSection("Manifests", proj.ManifestFiles())
	printSection("Env files", proj.EnvFiles())
	printSection("Images", proj.Images())
	printSection("Volumes", proj.Volumes())
	printSection("Bind mounts", proj.Binds())

	if proj.HasConflictedFiles() {
		fmt.Println("\nNote: manifest file names collide; staged copies will be index-prefixed")
	}

	return nil
}

func printSection(title string, entries []string) {
	fmt.Printf("\n%s (%d)\n", title, len(entries))
	fmt.Println(strings.Repeat("-", len(title)+4))
	for _, e := range entries {
		fmt.Printf("  %s\n", e)
	}
}

func printPlan(proj *compose.Project) error {
	plan, err := engine.Collect(proj, engine.CollectOptions{SkipImages: inspectSkipImages})
	if err != nil {
		return err
	}

	fmt.Printf("Staged layout for %s (%d items)\n\n", proj.Name(), len(plan.Items))
	for _, item := range plan.Items {
		fmt.Printf("  %-9s %s <- %s\n", item.Kind, item.Dest, item.Source)
	}

	if len(plan.Skips) > 0 {
		fmt.Println()
		for _, skip := range plan.Skips {
			fmt.Printf("  skipped   %s (%s)\n", skip.Source, skip.Reason)
		}
	}

	return nil
}
