// Package cli содержит CLI команды приложения.
package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marccodess/brain-tumor-detection/internal/config"
)

// newProfilesCmd создаёт команду для управления профилями.
func newProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Управление именованными профилями конфигурации",
		Long: `Управление именованными профилями конфигурации.

Профили хранятся в ~/.config/mriprep/profiles/ и позволяют
сохранять и загружать настройки для разных датасетов.

Примеры:
  # Сохранить текущие настройки как профиль
  mriprep --data ./dataset --out ./prepared --split-preset holdout --save-profile tumor-v2

  # Загрузить профиль и запустить пайплайн
  mriprep --load-profile tumor-v2

  # Список профилей
  mriprep profiles list

  # Удалить профиль
  mriprep profiles delete tumor-v2`,
	}

	cmd.AddCommand(newProfilesListCmd())
	cmd.AddCommand(newProfilesShowCmd())
	cmd.AddCommand(newProfilesDeleteCmd())

	return cmd
}

// newProfilesListCmd создаёт команду для списка профилей.
func newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Показать список сохранённых профилей",
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return fmt.Errorf("ошибка получения списка профилей: %w", err)
			}

			if len(profiles) == 0 {
				fmt.Println("Профили не найдены.")
				fmt.Println()
				fmt.Println("Сохраните профиль командой:")
				fmt.Println("  mriprep --data ./dataset --out ./prepared --save-profile my-dataset")
				return nil
			}

			fmt.Printf("📦 Сохранённые профили (%d):\n\n", len(profiles))

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ИМЯ\tДАТАСЕТ\tРАЗБИЕНИЕ\tПУТЬ")
			fmt.Fprintln(w, "---\t-------\t---------\t----")

			for _, p := range profiles {
				dataset := "-"
				split := "-"
				if p.Config != nil {
					if p.Config.Dataset != nil && p.Config.Dataset.Dir != "" {
						dataset = p.Config.Dataset.Dir
					}
					if p.Config.Split != nil {
						if p.Config.Split.Preset != "" {
							split = p.Config.Split.Preset
						} else if p.Config.Split.Train > 0 {
							split = fmt.Sprintf("%.2f/%.2f", p.Config.Split.Train, p.Config.Split.Test)
						}
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, dataset, split, p.Path)
			}
			w.Flush()

			return nil
		},
	}
}

// newProfilesShowCmd создаёт команду для отображения профиля.
func newProfilesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name]",
		Short: "Показать содержимое профиля",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			fc, path, err := config.LoadProfile(name)
			if err != nil {
				return err
			}

			fmt.Printf("📦 Профиль: %s\n", name)
			fmt.Printf("📁 Путь: %s\n\n", path)

			if fc.Dataset != nil {
				fmt.Println("Dataset:")
				if fc.Dataset.Dir != "" {
					fmt.Printf("  dir: %s\n", fc.Dataset.Dir)
				}
				if len(fc.Dataset.Categories) > 0 {
					fmt.Printf("  categories: %v\n", fc.Dataset.Categories)
				}
				if len(fc.Dataset.Extensions) > 0 {
					fmt.Printf("  extensions: %v\n", fc.Dataset.Extensions)
				}
			}

			if fc.Output != nil {
				fmt.Println("Output:")
				if fc.Output.Dir != "" {
					fmt.Printf("  dir: %s\n", fc.Output.Dir)
				}
				if fc.Output.Manifest != "" {
					fmt.Printf("  manifest: %s\n", fc.Output.Manifest)
				}
			}

			if fc.Split != nil {
				fmt.Println("Split:")
				if fc.Split.Preset != "" {
					fmt.Printf("  preset: %s\n", fc.Split.Preset)
				}
				if fc.Split.Train > 0 {
					fmt.Printf("  train: %g\n", fc.Split.Train)
				}
				if fc.Split.Test > 0 {
					fmt.Printf("  test: %g\n", fc.Split.Test)
				}
				if fc.Split.Val != nil {
					fmt.Printf("  val: %g\n", *fc.Split.Val)
				}
				if fc.Split.Seed != nil {
					fmt.Printf("  seed: %d\n", *fc.Split.Seed)
				}
			}

			if fc.Processing != nil {
				fmt.Println("Processing:")
				if fc.Processing.Workers > 0 {
					fmt.Printf("  workers: %d\n", fc.Processing.Workers)
				}
				if fc.Processing.MaxMemoryMB > 0 {
					fmt.Printf("  max_memory_mb: %d\n", fc.Processing.MaxMemoryMB)
				}
				if fc.Processing.Cache {
					fmt.Printf("  cache: true\n")
				}
			}

			return nil
		},
	}
}

// newProfilesDeleteCmd создаёт команду для удаления профиля.
func newProfilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Удалить профиль",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if !config.ProfileExists(name) {
				return fmt.Errorf("профиль '%s' не найден", name)
			}

			if err := config.DeleteProfile(name); err != nil {
				return fmt.Errorf("ошибка удаления профиля: %w", err)
			}

			fmt.Printf("✅ Профиль '%s' удалён\n", name)
			return nil
		},
	}
}

/*
Возможные расширения:
- Добавить команду 'profiles export' для экспорта в файл
- Добавить команду 'profiles copy' для копирования профиля
*/
